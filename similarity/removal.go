package similarity

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/scanengine"
	"arcsat.dev/satellite/vectorstore"
)

// DuplicatePair is a root/child relationship found to be an actual
// duplicate: child's pages are a subsequence of root's, so one of the two
// is redundant.
type DuplicatePair struct {
	Root  string
	Child string
}

// GetDuplicateArchives returns one DuplicatePair for every recorded child
// of every root in subarchive_map, matching get_duplicate_archives.
func GetDuplicateArchives(store *vectorstore.Store) ([]DuplicatePair, error) {
	roots, err := store.ListRoots()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	var out []DuplicatePair
	for _, root := range roots {
		children, err := store.Children(root)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		for _, child := range children {
			out = append(out, DuplicatePair{Root: root, Child: child})
		}
	}
	return out, nil
}

// RemovalSummary is the structured result of RemoveDuplicates (§4.7).
type RemovalSummary struct {
	DeletedCount int
	DeletedBytes int64
	FailedCount  int
	TotalBytes   int64
}

// RemoveDuplicates implements §4.7: every duplicate arcid's LRR metadata is
// resolved down to the nhentai gallery's trailing numeric source id, new
// ids are appended to the do-not-download file, and every archive on disk
// under contentsDir whose filename leads with a whitespace-delimited
// numeric token in the resulting id set is unlinked. dryRun performs
// discovery and classification only; no file is written or unlinked.
//
// Grounded on nhdd.py's remove_duplicate_archives_nhentai_archivist. The
// original declared a delete_failed field it never incremented; Satellite
// corrects that and tallies both metadata-resolution and unlink failures
// into FailedCount.
func RemoveDuplicates(ctx context.Context, store *vectorstore.Store, lrr *lrrclient.Client, contentsDir, doNotDownloadFile string, dryRun bool, log *zap.Logger) (RemovalSummary, error) {
	log = log.Named("similarity")
	var summary RemovalSummary

	pairs, err := GetDuplicateArchives(store)
	if err != nil {
		return summary, Error.Wrap(err)
	}
	seenArcID := make(map[string]bool, len(pairs))
	var duplicateArcIDs []string
	for _, pair := range pairs {
		if seenArcID[pair.Child] {
			continue
		}
		seenArcID[pair.Child] = true
		duplicateArcIDs = append(duplicateArcIDs, pair.Child)
	}

	existingIDs, err := readDoNotDownloadFile(doNotDownloadFile)
	if err != nil {
		return summary, Error.Wrap(err)
	}
	known := make(map[int64]bool, len(existingIDs))
	for _, id := range existingIDs {
		known[id] = true
	}

	newCount := 0
	for _, arcid := range duplicateArcIDs {
		id, err := resolveNhentaiSourceID(ctx, lrr, arcid)
		if err != nil {
			summary.FailedCount++
			log.Warn("failed to resolve nhentai source id", zap.String("arcid", arcid), zap.Error(err))
			continue
		}
		if known[id] {
			continue
		}
		known[id] = true
		existingIDs = append(existingIDs, id)
		newCount++
	}
	if !dryRun {
		if err := writeDoNotDownloadFile(doNotDownloadFile, existingIDs); err != nil {
			return summary, Error.Wrap(err)
		}
	}
	log.Info("updated do-not-download file", zap.Int("added", newCount), zap.Bool("dry_run", dryRun))

	archives, err := scanengine.FindAllArchives(contentsDir)
	if err != nil {
		return summary, Error.Wrap(err)
	}
	for _, path := range archives {
		info, err := os.Stat(path)
		if err != nil {
			summary.FailedCount++
			log.Warn("failed to stat archive", zap.String("path", path), zap.Error(err))
			continue
		}
		summary.TotalBytes += info.Size()

		id, ok := leadingNumericToken(filepath.Base(path))
		if !ok || !known[id] {
			continue
		}
		if !dryRun {
			if err := os.Remove(path); err != nil {
				summary.FailedCount++
				log.Error("failed to unlink duplicate", zap.String("path", path), zap.Error(err))
				continue
			}
		}
		summary.DeletedCount++
		summary.DeletedBytes += info.Size()
		log.Info("removed duplicate from disk", zap.String("path", path), zap.Bool("dry_run", dryRun))
	}

	return summary, nil
}

// resolveNhentaiSourceID fetches arcid's LRR metadata and extracts its
// nhentai gallery id from its "source:nhentai.net" tag, matching
// archive_id_to_nhentai_id / _get_source.
func resolveNhentaiSourceID(ctx context.Context, lrr *lrrclient.Client, arcid string) (int64, error) {
	meta, err := lrr.GetArchiveMetadata(ctx, arcid)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if meta.Tags == "" {
		return 0, Error.New("[%s] no tags found", arcid)
	}
	id := lrrclient.NhentaiSourceID(lrrclient.SplitTags(meta.Tags))
	if id < 0 {
		return 0, Error.New("[%s] tags exist but have no nhentai source id", arcid)
	}
	return id, nil
}

// leadingNumericToken returns the leading whitespace-delimited numeric
// token of name, the downloader id an archive's filename begins with.
func leadingNumericToken(name string) (int64, bool) {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// readDoNotDownloadFile reads the do-not-download file's ids, one per
// line. A missing file is treated as empty (nothing recorded yet).
func readDoNotDownloadFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	var out []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, Error.Wrap(scanner.Err())
}

// writeDoNotDownloadFile overwrites path with ids, one decimal id per
// line, newline-terminated, order preserved — the §6 file format.
func writeDoNotDownloadFile(path string, ids []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(strconv.FormatInt(id, 10) + "\n"); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(w.Flush())
}
