package embeddingengine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/embeddingengine"
	"arcsat.dev/satellite/img2vec"
	"arcsat.dev/satellite/vectorstore"
)

// fakePageSource supplies a fixed number of tiny in-memory pages, standing
// in for a real zip-backed PageSource in tests.
type fakePageSource struct{ n int }

func (f fakePageSource) Pages() ([]embeddingengine.PageImage, error) {
	out := make([]embeddingengine.PageImage, f.n)
	for i := range out {
		out[i] = embeddingengine.PageImage{Name: "page.jpg", Data: []byte{0xff, 0xd8, 0xff, 0xd9}}
	}
	return out, nil
}

func fakeImg2VecServer(t *testing.T) *img2vec.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["files"]
		embeddings := make([]map[string]interface{}, len(files))
		for i := range files {
			vec := make([]float32, vectorstore.Dimension)
			embeddings[i] = map[string]interface{}{"embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return img2vec.New(srv.URL)
}

func openTestVectorStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dsn := os.Getenv("SATELLITE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SATELLITE_TEST_PG_DSN not set, skipping embeddingengine integration test")
	}
	store, err := vectorstore.Open(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIngestArchiveFreshAndResume(t *testing.T) {
	store := openTestVectorStore(t)
	client := fakeImg2VecServer(t)

	err := embeddingengine.IngestArchive(context.Background(), store, client, "arc-1", fakePageSource{n: 6}, zaptest.NewLogger(t))
	require.NoError(t, err)

	n, err := store.CountPages("arc-1")
	require.NoError(t, err)
	require.Equal(t, 6, n)

	// Re-ingesting a complete archive should be a no-op: CountPages already
	// equals len(pages), so IngestArchive must skip straight to "skipped".
	err = embeddingengine.IngestArchive(context.Background(), store, client, "arc-1", fakePageSource{n: 6}, zaptest.NewLogger(t))
	require.NoError(t, err)

	job, err := store.GetEmbeddingJob("arc-1")
	require.NoError(t, err)
	require.Equal(t, vectorstore.EmbeddingSkipped, job.Status)
}

func TestIngestArchiveRedoesPartial(t *testing.T) {
	store := openTestVectorStore(t)
	client := fakeImg2VecServer(t)

	require.NoError(t, store.UpsertPage(vectorstore.Page{ArcID: "arc-2", PageNum: 1, Embedding: make([]float32, vectorstore.Dimension)}))

	err := embeddingengine.IngestArchive(context.Background(), store, client, "arc-2", fakePageSource{n: 5}, zaptest.NewLogger(t))
	require.NoError(t, err)

	n, err := store.CountPages("arc-2")
	require.NoError(t, err)
	require.Equal(t, 5, n, "a partial count must be deleted and redone from scratch, not topped up")
}
