package uploadengine

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/scanengine"
)

// Upload walks dir (file-mode, one archive per file already present on
// disk) or, when dirMode is true, treats each leaf folder under dir as a
// set of loose images to be zipped before upload, and pushes every
// not-yet-uploaded archive to LRR. Resumability comes from the
// archive_upload table keyed by SHA1 content checksum: a file whose
// checksum matches a row marked uploaded is skipped. Every candidate is
// read in full to compute that checksum; mtime is not consulted.
func Upload(ctx context.Context, store *jobstore.Store, lrr *lrrclient.Client, dir string, dirMode bool, log *zap.Logger) error {
	log = log.Named("upload")

	var candidates []string
	var err error
	if dirMode {
		candidates, err = scanengine.FindAllLeafFolders(dir)
	} else {
		candidates, err = scanengine.FindAllArchives(dir)
	}
	if err != nil {
		return Error.Wrap(err)
	}

	for _, path := range candidates {
		if dirMode {
			zipped, err := zipLeafFolder(path)
			if err != nil {
				log.Error("zip leaf folder failed", zap.String("path", path), zap.Error(err))
				continue
			}
			path = zipped
		}
		if err := uploadOne(ctx, store, lrr, path, log); err != nil {
			log.Error("upload failed", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func uploadOne(ctx context.Context, store *jobstore.Store, lrr *lrrclient.Client, path string, log *zap.Logger) error {
	sum, err := ChecksumFile(path)
	if err != nil {
		return Error.Wrap(err)
	}

	existing, err := store.GetArchiveUploadByChecksum(sum)
	if err != nil {
		return Error.Wrap(err)
	}
	if existing != nil && existing.Status == jobstore.UploadUploaded {
		return nil // already uploaded, resume skips it
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Error.Wrap(err)
	}
	sigHex := lrrclient.SignatureHex(data)
	if !lrrclient.IsValidSignature(sigHex) {
		return store.UpsertArchiveUpload(jobstore.ArchiveUploadRow{
			Checksum: sum, Path: path, Status: jobstore.UploadError,
			LastUpdated: float64(time.Now().Unix()),
		})
	}

	f, err := os.Open(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	status, arcid, err := lrr.UploadArchive(ctx, filepath.Base(path), f)
	if err != nil {
		return Error.Wrap(err)
	}

	row := jobstore.ArchiveUploadRow{
		Checksum: sum, Path: path, ArcID: arcid, LastUpdated: float64(time.Now().Unix()),
	}
	switch status {
	case lrrclient.UploadOK:
		row.Status = jobstore.UploadUploaded
		log.Info("uploaded", zap.String("path", path), zap.String("arcid", arcid))
	case lrrclient.UploadConflict:
		row.Status = jobstore.UploadExists
		log.Info("already exists on server", zap.String("path", path))
	default:
		row.Status = jobstore.UploadError
		log.Warn("upload rejected", zap.String("path", path))
	}
	return Error.Wrap(store.UpsertArchiveUpload(row))
}

// zipLeafFolder zips every file directly inside folder (non-recursive)
// into a sibling ".zip" next to it, matching the original's dir-mode
// "zip then upload" path for loose-image galleries.
func zipLeafFolder(folder string) (string, error) {
	target := folder + ".zip"
	out, err := os.Create(target)
	if err != nil {
		return "", Error.Wrap(err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	defer func() { _ = zw.Close() }()

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", Error.Wrap(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src, err := os.Open(filepath.Join(folder, e.Name()))
		if err != nil {
			return "", Error.Wrap(err)
		}
		w, err := zw.Create(e.Name())
		if err != nil {
			_ = src.Close()
			return "", Error.Wrap(err)
		}
		_, copyErr := io.Copy(w, src)
		_ = src.Close()
		if copyErr != nil {
			return "", Error.Wrap(copyErr)
		}
	}
	return target, nil
}
