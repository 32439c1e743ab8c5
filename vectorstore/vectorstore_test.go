package vectorstore_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/vectorstore"
)

// These tests exercise the real Postgres DDL (pgvector, HNSW, recursive
// CTEs) and so need a live database; set SATELLITE_TEST_PG_DSN to run them.
// They're skipped otherwise rather than faked against sqlite, since the
// vector column type and the <=> operator have no sqlite equivalent.
func openTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dsn := os.Getenv("SATELLITE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SATELLITE_TEST_PG_DSN not set, skipping vectorstore integration test")
	}
	store, err := vectorstore.Open(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPageUpsertAndCount(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "arc-1", PageNum: 1, Embedding: make([]float32, vectorstore.Dimension)}))
	require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "arc-1", PageNum: 2, Embedding: make([]float32, vectorstore.Dimension)}))

	n, err := store.CountPages("arc-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, store.DeletePages("arc-1"))
	n, err = store.CountPages("arc-1")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSubarchiveMapRootChain(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SetParent("root-1", nil))
	require.NoError(t, store.SetParent("child-1", strPtr("root-1")))
	require.NoError(t, store.SetParent("grandchild-1", strPtr("child-1")))

	root, err := store.GetRootSubarchive("grandchild-1")
	require.NoError(t, err)
	require.Equal(t, "root-1", root)

	roots, err := store.ListRoots()
	require.NoError(t, err)
	require.Contains(t, roots, "root-1")

	children, err := store.Children("root-1")
	require.NoError(t, err)
	require.Contains(t, children, "child-1")
}

func TestNhentaiArchiveCRUD(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertNhentaiArchive(vectorstore.NhentaiArchive{
		ArcID: "arc-2", Language: vectorstore.LanguageEnglish, Category: "doujinshi",
	}))

	row, err := store.GetNhentaiArchive("arc-2")
	require.NoError(t, err)
	require.Zero(t, row.FavoriteCount)

	require.NoError(t, store.SetFavoriteCount("arc-2", 3))
	row, err = store.GetNhentaiArchive("arc-2")
	require.NoError(t, err)
	require.Equal(t, 3, row.FavoriteCount)
}

func strPtr(s string) *string { return &s }
