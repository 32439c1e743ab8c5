package similarity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/similarity"
)

// newTaggedLRR serves meta for arcid -> tags, and 404s for everything else.
func newTaggedLRR(t *testing.T, tagsByArcID map[string]string) *lrrclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		arcid := parts[len(parts)-2] // .../archives/{arcid}/metadata
		tags, ok := tagsByArcID[arcid]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lrrclient.ArchiveMetadata{ArcID: arcid, Tags: tags})
	}))
	t.Cleanup(srv.Close)
	return lrrclient.New(srv.URL, "key")
}

func TestRemoveDuplicatesUnlinksAndRecordsSourceID(t *testing.T) {
	store := openTestVectorStore(t)
	require.NoError(t, store.SetParent("keeper", nil))
	require.NoError(t, store.SetParent("loser", strPtr("keeper")))

	lrr := newTaggedLRR(t, map[string]string{"loser": "source:nhentai.net/12345, language:english"})

	contentsDir := t.TempDir()
	archivePath := filepath.Join(contentsDir, "12345 Some Gallery.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("contents"), 0o644))

	dndFile := filepath.Join(t.TempDir(), "donotdownload.txt")

	summary, err := similarity.RemoveDuplicates(context.Background(), store, lrr, contentsDir, dndFile, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeletedCount)
	require.EqualValues(t, len("contents"), summary.DeletedBytes)
	require.Zero(t, summary.FailedCount)

	_, err = os.Stat(archivePath)
	require.True(t, os.IsNotExist(err), "the duplicate archive must be unlinked from disk")

	data, err := os.ReadFile(dndFile)
	require.NoError(t, err)
	require.Equal(t, "12345\n", string(data))
}

func TestRemoveDuplicatesDryRunLeavesDiskUntouched(t *testing.T) {
	store := openTestVectorStore(t)
	require.NoError(t, store.SetParent("keeper-2", nil))
	require.NoError(t, store.SetParent("loser-2", strPtr("keeper-2")))

	lrr := newTaggedLRR(t, map[string]string{"loser-2": "source:nhentai.net/999"})

	contentsDir := t.TempDir()
	archivePath := filepath.Join(contentsDir, "999 Some Gallery.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("xyz"), 0o644))

	dndFile := filepath.Join(t.TempDir(), "donotdownload.txt")

	summary, err := similarity.RemoveDuplicates(context.Background(), store, lrr, contentsDir, dndFile, true, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeletedCount, "dry run still reports what would be deleted")
	require.EqualValues(t, 3, summary.DeletedBytes)

	_, err = os.Stat(archivePath)
	require.NoError(t, err, "dry run must not unlink anything")
	_, err = os.Stat(dndFile)
	require.True(t, os.IsNotExist(err), "dry run must not write the do-not-download file")
}

func TestRemoveDuplicatesCountsMetadataFailure(t *testing.T) {
	store := openTestVectorStore(t)
	require.NoError(t, store.SetParent("keeper-3", nil))
	require.NoError(t, store.SetParent("loser-3", strPtr("keeper-3")))

	lrr := newTaggedLRR(t, map[string]string{}) // every lookup 404s

	contentsDir := t.TempDir()
	dndFile := filepath.Join(t.TempDir(), "donotdownload.txt")

	summary, err := similarity.RemoveDuplicates(context.Background(), store, lrr, contentsDir, dndFile, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 1, summary.FailedCount)
	require.Zero(t, summary.DeletedCount)
}

func strPtr(s string) *string { return &s }
