// Package lrrclient is a typed REST client for LANraragi (C3), grounded on
// src/lanraragi/client.py's method surface and its base64-bearer auth
// scheme.
package lrrclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/errs"
)

// Error is the lrrclient package's error class.
var Error = errs.Class("lrrclient")

// Client talks to a single LANraragi instance over HTTP.
type Client struct {
	host       string
	authHeader string
	http       *http.Client
	trace      *logrus.Entry
}

// New builds a Client for host (e.g. "http://localhost:3000") authenticated
// with apiKey. The Authorization header is base64(apiKey) per the original
// client's `base64.b64encode(lrr_api_key.encode('utf-8'))` construction.
func New(host, apiKey string) *Client {
	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return &Client{
		host:       host,
		authHeader: "Bearer " + encoded,
		http:       &http.Client{Timeout: 60 * time.Second},
		trace:      logrus.WithField("component", "lrrclient"),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Authorization", c.authHeader)
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.trace.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}).Debug("lrr request")

	resp, err := c.http.Do(req)
	if err != nil {
		c.trace.WithError(err).Warn("lrr request failed")
		return nil, Error.Wrap(err)
	}
	c.trace.WithField("status", resp.StatusCode).Debug("lrr response")
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Error.New("GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return Error.Wrap(json.NewDecoder(resp.Body).Decode(out))
}

// ArchiveMetadata mirrors the subset of LRR's archive JSON Satellite reads.
type ArchiveMetadata struct {
	ArcID    string `json:"arcid"`
	Title    string `json:"title"`
	Tags     string `json:"tags"`
	IsNew    bool   `json:"isnew"`
	Pages    int    `json:"pages"`
	Progress int    `json:"progress"`
}

// GetAllArchives lists every archive known to LRR.
func (c *Client) GetAllArchives(ctx context.Context) ([]ArchiveMetadata, error) {
	var out []ArchiveMetadata
	err := c.getJSON(ctx, "/api/archives", &out)
	return out, err
}

// GetArchiveMetadata fetches metadata for a single archive.
func (c *Client) GetArchiveMetadata(ctx context.Context, arcid string) (*ArchiveMetadata, error) {
	var out ArchiveMetadata
	if err := c.getJSON(ctx, "/api/archives/"+arcid+"/metadata", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateArchiveMetadata PUTs an archive's title/tags.
func (c *Client) UpdateArchiveMetadata(ctx context.Context, arcid, title, tags string) error {
	form := make(map[string]string)
	if title != "" {
		form["title"] = title
	}
	if tags != "" {
		form["tags"] = tags
	}
	body, _ := json.Marshal(form)
	req, err := c.newRequest(ctx, http.MethodPut, "/api/archives/"+arcid+"/metadata", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Error.New("update metadata %s: status %d", arcid, resp.StatusCode)
	}
	return nil
}

// UploadStatus describes the outcome of an UploadArchive call, matching
// the branching upload.py does on LRR's response codes.
type UploadStatus int

const (
	UploadOK UploadStatus = iota
	UploadConflict
	UploadInvalidSignature
	UploadOther
)

// UploadArchive uploads content under filename.
func (c *Client) UploadArchive(ctx context.Context, filename string, content io.Reader) (UploadStatus, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadOther, "", Error.Wrap(err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadOther, "", Error.Wrap(err)
	}
	if err := writer.Close(); err != nil {
		return UploadOther, "", Error.Wrap(err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/archives/upload", buf)
	if err != nil {
		return UploadOther, "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return UploadOther, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed struct {
		ArcID string `json:"arcid"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	switch resp.StatusCode {
	case http.StatusOK:
		return UploadOK, parsed.ArcID, nil
	case http.StatusConflict:
		return UploadConflict, parsed.ArcID, nil
	case http.StatusExpectationFailed:
		return UploadInvalidSignature, "", nil
	default:
		return UploadOther, "", Error.New("upload %s: status %d", filename, resp.StatusCode)
	}
}

// DownloadArchive streams the raw archive bytes for arcid.
func (c *Client) DownloadArchive(ctx context.Context, arcid string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/archives/"+arcid+"/download", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, Error.New("download %s: status %d", arcid, resp.StatusCode)
	}
	return resp.Body, nil
}

// DeleteArchive removes an archive from LRR.
func (c *Client) DeleteArchive(ctx context.Context, arcid string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/archives/"+arcid, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Error.New("delete %s: status %d", arcid, resp.StatusCode)
	}
	return nil
}

// UsePlugin invokes a metadata plugin against an archive, matching
// use_plugin's request shape.
func (c *Client) UsePlugin(ctx context.Context, arcid, plugin string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/archives/%s/metadata/plugins?plugin=%s", arcid, plugin)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPluginNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Error.New("use_plugin %s/%s: status %d", arcid, plugin, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return raw, nil
}

// ErrPluginNotFound is returned by UsePlugin when LRR reports the gallery
// could not be resolved against the plugin's source (NOT_FOUND semantics,
// §4.4).
var ErrPluginNotFound = Error.New("plugin lookup not found")

// ServerInfo mirrors get_server_info's response shape.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetServerInfo returns the LRR instance's name and version, used by the
// healthcheck endpoint.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var out ServerInfo
	if err := c.getJSON(ctx, "/api/info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
