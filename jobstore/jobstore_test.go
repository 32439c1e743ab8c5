package jobstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/jobstore"
)

func openTestStore(t *testing.T) *jobstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satellite.db")
	store, err := jobstore.Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestArchiveScanCRUD(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertArchiveScan("md5-1", "/contents/a.zip", jobstore.ScanPending, 100.0))

	row, err := store.GetArchiveScanByMD5("md5-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, jobstore.ScanPending, row.Status)

	require.NoError(t, store.UpsertArchiveScan("md5-1", "/contents/a.zip", jobstore.ScanOK, 100.0))
	row, err = store.GetArchiveScanByMD5("md5-1")
	require.NoError(t, err)
	require.Equal(t, jobstore.ScanOK, row.Status)

	rows, err := store.GetArchiveScansByStatus(jobstore.ScanOK)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, store.DeleteArchiveScan("md5-1"))
	row, err = store.GetArchiveScanByMD5("md5-1")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestArchiveUploadUpsert(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertArchiveUpload(jobstore.ArchiveUploadRow{
		Checksum: "sum-1", Path: "/contents/a.zip", Status: jobstore.UploadPending,
	}))
	row, err := store.GetArchiveUploadByChecksum("sum-1")
	require.NoError(t, err)
	require.Equal(t, jobstore.UploadPending, row.Status)

	row.Status = jobstore.UploadUploaded
	row.ArcID = "arc-123"
	require.NoError(t, store.UpsertArchiveUpload(*row))

	row, err = store.GetArchiveUploadByChecksum("sum-1")
	require.NoError(t, err)
	require.Equal(t, jobstore.UploadUploaded, row.Status)
	require.Equal(t, "arc-123", row.ArcID)
}

func TestDueNotFoundRetries(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertMetadataPluginTask(jobstore.MetadataPluginTaskRow{
		ArcID: "arc-1", Plugin: "pixiv", Status: jobstore.MetadataNotFound,
		NumFailures: 1, LastUpdated: 1000,
	}))

	due, err := store.DueNotFoundRetries(1000 + 86400*2 + 1)
	require.NoError(t, err)
	require.Len(t, due, 1)

	due, err = store.DueNotFoundRetries(1000)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestAuthRecord(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.VerifyAPIKey("anything")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetAPIKey("s3cr3t"))

	ok, err = store.VerifyAPIKey("s3cr3t")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.VerifyAPIKey("wrong")
	require.NoError(t, err)
	require.False(t, ok)
}
