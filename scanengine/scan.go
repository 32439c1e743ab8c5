package scanengine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"arcsat.dev/satellite/jobstore"
)

var archiveSuffixes = []string{
	".zip", ".cbz", ".rar", ".cbr", ".7z", ".tar.gz", ".pdf",
}

func hasArchiveSuffix(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// FindAllArchives walks dir and returns every file whose extension is a
// recognized archive container, matching find_all_archives's suffix-
// filtered rglob.
func FindAllArchives(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if hasArchiveSuffix(path) {
			out = append(out, path)
		}
		return nil
	})
	return out, Error.Wrap(err)
}

// FindAllLeafFolders returns every directory under dir that itself
// contains no subdirectories, matching find_all_leaf_folders — the unit of
// work for directory-mode uploads.
func FindAllLeafFolders(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				return nil
			}
		}
		out = append(out, path)
		return nil
	})
	return out, Error.Wrap(err)
}

// MD5Path hashes the archive's absolute path string (not its contents) the
// way scan_lrr_archives derives the archive_scan primary key.
func MD5Path(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

const analysisConcurrency = 8

// Scan runs the two-phase scan: phase 1 discovers archives under dir and
// records pending rows for anything new or changed by mtime; phase 2
// analyzes every pending row for corruption, bounded to analysisConcurrency
// concurrent workers (matching the original's semaphore of 8 for the
// single-process path; Satellite always runs single-process since its
// corruption check is pure Go, not the CPU-bound PIL decode the original
// needed a ProcessPoolExecutor for).
func Scan(ctx context.Context, store *jobstore.Store, dir string, log *zap.Logger) error {
	log = log.Named("scan")
	start := time.Now()

	archives, err := FindAllArchives(dir)
	if err != nil {
		return Error.Wrap(err)
	}

	var pending []jobstore.ArchiveScanRow
	for _, path := range archives {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		mtime := float64(info.ModTime().Unix())
		md5sum := MD5Path(path)

		existing, err := store.GetArchiveScanByMD5(md5sum)
		if err != nil {
			return Error.Wrap(err)
		}
		if existing != nil && existing.MTime == mtime {
			continue
		}
		if err := store.UpsertArchiveScan(md5sum, path, jobstore.ScanPending, mtime); err != nil {
			return Error.Wrap(err)
		}
		pending = append(pending, jobstore.ArchiveScanRow{MD5: md5sum, Path: path, MTime: mtime})
	}
	log.Info("discovered archives", zap.Int("found", len(archives)), zap.Int("pending", len(pending)))

	rows, err := store.GetArchiveScansByStatus(jobstore.ScanPending)
	if err != nil {
		return Error.Wrap(err)
	}

	sem := make(chan struct{}, analysisConcurrency)
	var wg sync.WaitGroup
	for _, row := range rows {
		if _, err := os.Stat(row.Path); err != nil {
			if err := store.DeleteArchiveScan(row.MD5); err != nil {
				log.Warn("delete vanished archive_scan row failed", zap.Error(err))
			}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(row jobstore.ArchiveScanRow) {
			defer wg.Done()
			defer func() { <-sem }()

			status := jobstore.ScanOK
			corrupted, err := ArchiveContainsCorruptedImage(row.Path)
			switch {
			case err != nil:
				status = jobstore.ScanError
				log.Error("analyze error", zap.String("path", row.Path), zap.Error(err))
			case corrupted:
				status = jobstore.ScanCorrupted
				log.Warn("analyze not ok", zap.String("path", row.Path))
			default:
				log.Info("analyze ok", zap.String("path", row.Path))
			}
			if err := store.UpsertArchiveScan(row.MD5, row.Path, status, row.MTime); err != nil {
				log.Error("persist scan result failed", zap.Error(err))
			}
		}(row)
	}
	wg.Wait()

	log.Info("scan complete", zap.Int("scanned", len(rows)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// DeleteCorrupted removes every archive marked corrupted from disk and
// clears its archive_scan row.
func DeleteCorrupted(store *jobstore.Store, log *zap.Logger) (int, error) {
	log = log.Named("scan")
	rows, err := store.GetArchiveScansByStatus(jobstore.ScanCorrupted)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	deleted := 0
	for _, row := range rows {
		if err := os.Remove(row.Path); err != nil && !os.IsNotExist(err) {
			log.Warn("delete corrupted archive failed", zap.String("path", row.Path), zap.Error(err))
			continue
		}
		deleted++
		log.Info("deleted corrupted archive", zap.String("path", row.Path))
		if err := store.DeleteArchiveScan(row.MD5); err != nil {
			return deleted, Error.Wrap(err)
		}
	}
	return deleted, nil
}
