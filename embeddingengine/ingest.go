// Package embeddingengine implements Satellite's perceptual-embedding
// ingestion (C6), grounded on nhdd.py's create_pages_from_arcid: resumable
// per-archive page embedding in batches of 4 images per img2vec call. The
// batches of one archive are sent one after another, not concurrently.
package embeddingengine

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"arcsat.dev/satellite/img2vec"
	"arcsat.dev/satellite/internal/retry"
	"arcsat.dev/satellite/vectorstore"
)

// Error is the embeddingengine package's error class.
var Error = errs.Class("embeddingengine")

// PageSource supplies an archive's page images in order. Production
// callers implement this by opening the archive's zip from disk; tests
// supply an in-memory fake.
type PageSource interface {
	// Pages returns (name, reader) pairs ordered by page number.
	Pages() ([]PageImage, error)
}

// PageImage is one page's raw bytes and its filename (used for logging and
// for img2vec's multipart field name).
type PageImage struct {
	Name string
	Data []byte
}

// zipPageSource reads page images directly out of an archive file.
type zipPageSource struct{ path string }

// NewZipPageSource builds a PageSource backed by the zip archive at path.
func NewZipPageSource(path string) PageSource { return zipPageSource{path: path} }

func (z zipPageSource) Pages() ([]PageImage, error) {
	r, err := zip.OpenReader(z.path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = r.Close() }()

	var members []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		members = append(members, f)
	}
	// Page numbers are assigned by filename order, not raw archive order
	// (zip directory order is whatever the packer wrote), so the
	// subsequence algorithm sees a stable page sequence across re-ingests.
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	out := make([]PageImage, 0, len(members))
	for _, f := range members {
		rc, err := f.Open()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, PageImage{Name: f.Name, Data: data})
	}
	return out, nil
}

// IngestArchive embeds every page of arcid and persists the resulting Page
// rows, resuming correctly across restarts:
//   - if vectorstore already has exactly as many Page rows as the archive
//     has pages, ingestion is skipped entirely (already complete);
//   - if it has a nonzero but smaller count, the partial rows are deleted
//     and ingestion redone from page 1, since img2vec batches aren't
//     individually retriable once a batch partially lands;
//   - pages are embedded in batches of img2vec.BatchSize, each batch issued
//     as one multipart request and retried up to retry.MaxAttempts times on
//     transient failure (rate limiting, connection errors).
func IngestArchive(ctx context.Context, store *vectorstore.Store, client *img2vec.Client, arcid string, source PageSource, log *zap.Logger) error {
	log = log.Named("embedding").With(zap.String("arcid", arcid))

	pages, err := source.Pages()
	if err != nil {
		return Error.Wrap(err)
	}

	existingCount, err := store.CountPages(arcid)
	if err != nil {
		return Error.Wrap(err)
	}
	if existingCount == len(pages) {
		log.Info("already ingested, skipping", zap.Int("pages", len(pages)))
		return Error.Wrap(store.UpsertEmbeddingJob(vectorstore.EmbeddingJob{
			ArcID: arcid, Pages: len(pages), Status: vectorstore.EmbeddingSkipped,
		}))
	}
	if existingCount > 0 {
		log.Warn("partial ingestion found, redoing from scratch", zap.Int("existing", existingCount), zap.Int("expected", len(pages)))
		if err := store.DeletePages(arcid); err != nil {
			return Error.Wrap(err)
		}
	}

	if err := store.UpsertEmbeddingJob(vectorstore.EmbeddingJob{ArcID: arcid, Pages: len(pages), Status: vectorstore.EmbeddingPending}); err != nil {
		return Error.Wrap(err)
	}

	rng := rand.New(rand.NewSource(int64(len(pages))))
	for start := 0; start < len(pages); start += img2vec.BatchSize {
		end := start + img2vec.BatchSize
		if end > len(pages) {
			end = len(pages)
		}
		batch := pages[start:end]

		var embeddings [][]float32
		retryErr := retry.Do(ctx, rng, func(error) bool { return true }, func(attempt int) error {
			images := make(map[string]io.Reader, len(batch))
			for i, p := range batch {
				images[fmt.Sprintf("%d_%s", i, p.Name)] = bytes.NewReader(p.Data)
			}
			result, err := client.CreateBatchEmbeddings(ctx, images)
			if err != nil {
				return err
			}
			embeddings = result
			return nil
		})
		if retryErr != nil {
			if err := store.UpsertEmbeddingJob(vectorstore.EmbeddingJob{ArcID: arcid, Pages: len(pages), Status: vectorstore.EmbeddingError}); err != nil {
				log.Error("failed to persist embedding job error status", zap.Error(err))
			}
			return Error.Wrap(retryErr)
		}

		if err := persistBatch(store, arcid, start+1, embeddings); err != nil {
			return Error.Wrap(err)
		}
		log.Info("ingested batch", zap.Int("start", start), zap.Int("count", len(batch)))
	}

	log.Info("ingestion complete", zap.Int("pages", len(pages)))
	return Error.Wrap(store.UpsertEmbeddingJob(vectorstore.EmbeddingJob{
		ArcID: arcid, Pages: len(pages), Status: vectorstore.EmbeddingComplete,
	}))
}

// persistBatch writes one batch of embeddings starting at pageNumBase, a
// 1-indexed page_no (§3 Page requires page_no >= 1).
func persistBatch(store *vectorstore.Store, arcid string, pageNumBase int, embeddings [][]float32) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(embeddings))
	for i, emb := range embeddings {
		wg.Add(1)
		go func(pageNum int, embedding []float32) {
			defer wg.Done()
			if err := store.UpsertPage(vectorstore.Page{ArcID: arcid, PageNum: pageNum, Embedding: embedding}); err != nil {
				errCh <- err
			}
		}(pageNumBase+i, emb)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
