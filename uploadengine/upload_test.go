package uploadengine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/uploadengine"
)

func TestChecksumFileIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sum1, err := uploadengine.ChecksumFile(path)
	require.NoError(t, err)
	sum2, err := uploadengine.ChecksumFile(path)
	require.NoError(t, err)
	require.Equal(t, sum1, sum2)
	require.Len(t, sum1, 40) // hex-encoded SHA1
}

func TestUploadSkipsAlreadyUploaded(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("PK\x03\x04rest-of-zip"), 0o644))

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"arcid":"abc123"}`))
	}))
	defer srv.Close()

	store, err := jobstore.Open(filepath.Join(t.TempDir(), "db.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	client := lrrclient.New(srv.URL, "key")
	require.NoError(t, uploadengine.Upload(context.Background(), store, client, dir, false, zaptest.NewLogger(t)))
	require.Equal(t, 1, calls)

	require.NoError(t, uploadengine.Upload(context.Background(), store, client, dir, false, zaptest.NewLogger(t)))
	require.Equal(t, 1, calls, "second run should skip the already-uploaded archive")
}
