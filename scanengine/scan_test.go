package scanengine_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/scanengine"
)

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestImageIsCorrupted(t *testing.T) {
	require.True(t, scanengine.ImageIsCorrupted("a.jpg", nil))
	require.True(t, scanengine.ImageIsCorrupted("a.jpg", []byte{0x00, 0x01}))
	require.False(t, scanengine.ImageIsCorrupted("a.jpg", []byte{0x00, 0xFF, 0xD9}))
	require.False(t, scanengine.ImageIsCorrupted("a.txt", []byte{0x00}))
}

func TestArchiveContainsCorruptedImage(t *testing.T) {
	dir := t.TempDir()

	okPath := filepath.Join(dir, "ok.zip")
	writeZip(t, okPath, map[string][]byte{"1.jpg": {0x00, 0xFF, 0xD9}})
	corrupted, err := scanengine.ArchiveContainsCorruptedImage(okPath)
	require.NoError(t, err)
	require.False(t, corrupted)

	badPath := filepath.Join(dir, "bad.zip")
	writeZip(t, badPath, map[string][]byte{"1.jpg": {0x00, 0x01}})
	corrupted, err = scanengine.ArchiveContainsCorruptedImage(badPath)
	require.NoError(t, err)
	require.True(t, corrupted)
}

func TestScanMarksCorrupted(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "bad.zip"), map[string][]byte{"1.jpg": {0x00}})

	store, err := jobstore.Open(filepath.Join(t.TempDir(), "db.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, scanengine.Scan(context.Background(), store, dir, zaptest.NewLogger(t)))

	rows, err := store.GetArchiveScansByStatus(jobstore.ScanCorrupted)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
