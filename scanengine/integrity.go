// Package scanengine implements Satellite's archive-integrity scan (C5),
// grounded on satellite_server/app/services/archives.py, with the
// byte-level image corruption checks spec.md §4.2 specifies in place of
// the original's coarser PIL/numpy check.
package scanengine

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the scanengine package's error class.
var Error = errs.Class("scanengine")

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
}

// jpegEOF and pngIEND are the exact trailing byte sequences a well-formed
// JPEG/PNG file ends with; their absence signals a truncated/corrupted
// image, per spec.md §4.2.
var (
	jpegEOF = []byte{0xFF, 0xD9}
	pngIEND = []byte{0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}
)

// ImageIsCorrupted reports whether data is a zero-length buffer or a
// JPEG/PNG missing its terminal marker.
func ImageIsCorrupted(name string, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return !bytes.HasSuffix(data, jpegEOF)
	case ".png":
		return !bytes.HasSuffix(data, pngIEND)
	default:
		return false
	}
}

// ArchiveContainsCorruptedImage opens path as a zip/cbz archive and checks
// every image member for corruption. A non-zip archive is treated as
// corrupted outright, matching archive_contains_corrupted_image's
// immediate-True branch for unsupported containers.
func ArchiveContainsCorruptedImage(path string) (bool, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return true, nil
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !imageExts[ext] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return true, Error.Wrap(err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return true, Error.Wrap(err)
		}
		if ImageIsCorrupted(f.Name, data) {
			return true, nil
		}
	}
	return false, nil
}
