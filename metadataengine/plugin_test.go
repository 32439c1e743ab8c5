package metadataengine_test

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/metadataengine"
)

func openTestStore(t *testing.T) *jobstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satellite.db")
	store, err := jobstore.Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProcessOneRecordsComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"new_tags":"artist:foo","success":true}`))
	}))
	defer srv.Close()

	store := openTestStore(t)
	lrr := lrrclient.New(srv.URL, "key")
	rng := rand.New(rand.NewSource(1))

	err := metadataengine.ProcessOne(context.Background(), store, lrr, "arc-1", "pixiv", 0, rng, zaptest.NewLogger(t))
	require.NoError(t, err)

	row, err := store.GetMetadataPluginTask("arc-1", "pixiv")
	require.NoError(t, err)
	require.Equal(t, jobstore.MetadataComplete, row.Status)
}

func TestProcessOneSkipsAlreadyComplete(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := openTestStore(t)
	require.NoError(t, store.UpsertMetadataPluginTask(jobstore.MetadataPluginTaskRow{
		ArcID: "arc-1", Plugin: "pixiv", Status: jobstore.MetadataComplete, LastUpdated: 1,
	}))

	lrr := lrrclient.New(srv.URL, "key")
	rng := rand.New(rand.NewSource(1))

	err := metadataengine.ProcessOne(context.Background(), store, lrr, "arc-1", "pixiv", 0, rng, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Zero(t, calls, "a plugin already marked complete should not be called again")
}

func TestProcessOneRecordsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := openTestStore(t)
	lrr := lrrclient.New(srv.URL, "key")
	rng := rand.New(rand.NewSource(1))

	err := metadataengine.ProcessOne(context.Background(), store, lrr, "arc-2", "pixiv", 0, rng, zaptest.NewLogger(t))
	require.NoError(t, err)

	row, err := store.GetMetadataPluginTask("arc-2", "pixiv")
	require.NoError(t, err)
	require.Equal(t, jobstore.MetadataNotFound, row.Status)
	require.Equal(t, 1, row.NumFailures)
}

func TestMergeTags(t *testing.T) {
	merged := metadataengine.MergeTags("artist:foo, language:english", "artist:foo, source:nhentai.net")
	require.Equal(t, "artist:foo, language:english, source:nhentai.net", merged)
}
