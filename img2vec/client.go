// Package img2vec is a thin client for the external perceptual-embedding
// service Satellite's dedup pipeline depends on (C3), grounded on
// nhdd.py's Img2VecClient.
package img2vec

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/zeebo/errs"
)

// Error is the img2vec package's error class.
var Error = errs.Class("img2vec")

// Client talks to a single img2vec instance.
type Client struct {
	host string
	http *http.Client
}

// New builds a Client for host (e.g. "http://localhost:8000").
func New(host string) *Client {
	return &Client{host: host, http: &http.Client{Timeout: 120 * time.Second}}
}

// Healthcheck reports whether the img2vec service is reachable and ready.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/healthcheck", nil)
	if err != nil {
		return Error.Wrap(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Error.New("healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// embeddingResponse is the wire shape img2vec returns for one image.
type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// CreateEmbedding computes the embedding for a single image.
func (c *Client) CreateEmbedding(ctx context.Context, filename string, image io.Reader) ([]float32, error) {
	embeddings, err := c.createBatch(ctx, []namedReader{{filename, image}})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, Error.New("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

type namedReader struct {
	name string
	r    io.Reader
}

// CreateBatchEmbeddings computes embeddings for up to len(images) images in
// one multipart request, matching create_batch_embeddings's repeated
// "files" form field.
func (c *Client) CreateBatchEmbeddings(ctx context.Context, images map[string]io.Reader) ([][]float32, error) {
	readers := make([]namedReader, 0, len(images))
	for name, r := range images {
		readers = append(readers, namedReader{name, r})
	}
	return c.createBatch(ctx, readers)
}

func (c *Client) createBatch(ctx context.Context, images []namedReader) ([][]float32, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, img := range images {
		part, err := writer.CreateFormFile("files", img.name)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if _, err := io.Copy(part, img.r); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, Error.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/embeddings/batch", buf)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, Error.New("batch embeddings: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Embeddings []embeddingResponse `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Error.Wrap(err)
	}
	if len(parsed.Embeddings) != len(images) {
		return nil, Error.New("expected %d embeddings, got %d", len(images), len(parsed.Embeddings))
	}
	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = e.Embedding
	}
	return out, nil
}

// ErrRateLimited is returned when img2vec answers 429, the transient
// condition the embedding engine's capped retry exists to absorb.
var ErrRateLimited = Error.New("rate limited")

// BatchSize is the number of images sent per img2vec call during
// ingestion; embeddingengine sends one such batch at a time.
const BatchSize = 4
