// Package uploadengine implements Satellite's bulk batched upload with
// resume (C5), grounded on satellite/app/services/upload.py.
package uploadengine

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/errs"
)

// Error is the uploadengine package's error class.
var Error = errs.Class("uploadengine")

// chunkSize is the read chunk compute_upload_checksum uses: 8 KiB.
const chunkSize = 8 * 1024

// ChecksumFile computes the SHA1 of path, read in 8 KiB chunks so large
// archives don't require loading the whole file into memory.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	h := sha1.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", Error.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
