package similarity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/similarity"
	"arcsat.dev/satellite/vectorstore"
)

func openTestVectorStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dsn := os.Getenv("SATELLITE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SATELLITE_TEST_PG_DSN not set, skipping similarity integration test")
	}
	store, err := vectorstore.Open(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newTestLRR returns a client against a stub server that serves empty
// metadata for every archive, sufficient for tie-break scoring in tests
// that don't care about tag-derived rubric factors.
func newTestLRR(t *testing.T) *lrrclient.Client {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lrrclient.ArchiveMetadata{})
	}))
	t.Cleanup(backend.Close)
	return lrrclient.New(backend.URL, "key")
}

func TestComputeSubarchivesFindsChild(t *testing.T) {
	store := openTestVectorStore(t)
	lrr := newTestLRR(t)

	root := make([]float32, vectorstore.Dimension)
	root[0] = 1
	child := make([]float32, vectorstore.Dimension)
	child[0] = 1

	require.NoError(t, store.UpsertNhentaiArchive(vectorstore.NhentaiArchive{ArcID: "root-3", Language: vectorstore.LanguageEnglish}))
	require.NoError(t, store.UpsertNhentaiArchive(vectorstore.NhentaiArchive{ArcID: "child-3", Language: vectorstore.LanguageEnglish}))
	require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "root-3", PageNum: 1, Embedding: root}))
	require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "child-3", PageNum: 1, Embedding: child}))
	require.NoError(t, store.SetParent("root-3", nil))

	require.NoError(t, similarity.ComputeSubarchives(context.Background(), store, lrr, similarity.DefaultThreshold, zaptest.NewLogger(t)))

	parentRoot, err := store.GetRootSubarchive("root-3")
	require.NoError(t, err)
	require.Equal(t, "child-3", parentRoot, "an identical archive with an equal rubric score takes over as root because its arcid sorts first")
}

// TestComputeSubarchivesRepointsExistingRoot covers the partial-order case
// the original one-direction scan missed: a newly ingested archive (big)
// that is a proper suparchive of an archive already recorded as a root
// (root) must become the new root, with root re-pointed underneath it.
func TestComputeSubarchivesRepointsExistingRoot(t *testing.T) {
	store := openTestVectorStore(t)
	lrr := newTestLRR(t)

	page := func(seed float32) []float32 {
		v := make([]float32, vectorstore.Dimension)
		v[0] = seed
		return v
	}

	require.NoError(t, store.UpsertNhentaiArchive(vectorstore.NhentaiArchive{ArcID: "root-sub", Language: vectorstore.LanguageEnglish}))
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "root-sub", PageNum: i, Embedding: page(float32(i))}))
	}
	require.NoError(t, store.SetParent("root-sub", nil))

	require.NoError(t, store.UpsertNhentaiArchive(vectorstore.NhentaiArchive{ArcID: "big-sup", Language: vectorstore.LanguageEnglish}))
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "big-sup", PageNum: i, Embedding: page(float32(i))}))
	}

	require.NoError(t, similarity.ComputeSubarchives(context.Background(), store, lrr, similarity.DefaultThreshold, zaptest.NewLogger(t)))

	bigRoot, err := store.GetRootSubarchive("big-sup")
	require.NoError(t, err)
	require.Equal(t, "big-sup", bigRoot, "a superset archive must become its own root")

	oldRootParent, err := store.GetRootSubarchive("root-sub")
	require.NoError(t, err)
	require.Equal(t, "big-sup", oldRootParent, "the pre-existing root must be re-pointed under the dominating archive")
}
