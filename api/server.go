// Package api is Satellite's HTTP front end (§6), a gorilla/mux router
// wiring the job stores, pipeline runner and clients together.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"arcsat.dev/satellite/img2vec"
	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/pipeline"
	"arcsat.dev/satellite/vectorstore"
)

// Server bundles every dependency the HTTP handlers need.
type Server struct {
	Jobs    *jobstore.Store
	Vectors *vectorstore.Store
	LRR     *lrrclient.Client
	Img2Vec *img2vec.Client
	Runner  *pipeline.Runner
	Log     *zap.Logger

	ContentsDir          string
	DoNotDownloadFile    string
	SimilarityThreshold  float64
	MetadataSleepSeconds float64

	router *mux.Router
}

// NewServer builds and wires the router.
func NewServer(s *Server) *Server {
	s.router = mux.NewRouter()
	s.router.Use(s.authMiddleware)

	s.router.HandleFunc("/api/healthcheck", s.handleHealthcheck).Methods(http.MethodGet)

	s.router.HandleFunc("/api/archives/scan", s.handleScan).Methods(http.MethodPost)
	s.router.HandleFunc("/api/archives/scan/corrupted", s.handleDeleteCorrupted).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/archives/upload", s.handleUpload).Methods(http.MethodPost)

	s.router.HandleFunc("/api/archives/{arcid}/metadata/plugins/{plugin}", s.handleMetadataPlugin).Methods(http.MethodPost)

	s.router.HandleFunc("/api/nhdd/embeddings/{arcid}", s.handleIngestEmbeddings).Methods(http.MethodPost)
	s.router.HandleFunc("/api/nhdd/subarchives/compute", s.handleComputeSubarchives).Methods(http.MethodPost)
	s.router.HandleFunc("/api/nhdd/subarchive-map/{arcid}", s.handleSubarchiveMap).Methods(http.MethodGet)
	s.router.HandleFunc("/api/nhdd/duplicates", s.handleListDuplicates).Methods(http.MethodGet)
	s.router.HandleFunc("/api/nhdd/duplicates", s.handleRemoveDuplicates).Methods(http.MethodDelete)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/healthcheck" {
			next.ServeHTTP(w, r)
			return
		}
		key := bearerToken(r)
		ok, err := s.Jobs.VerifyAPIKey(key)
		if err != nil {
			s.Log.Error("auth check failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"satellite": "ok"}

	if _, err := s.LRR.GetServerInfo(ctx); err != nil {
		status["lrr"] = "down"
	} else {
		status["lrr"] = "ok"
	}

	if err := s.Img2Vec.Healthcheck(ctx); err != nil {
		status["img2vec"] = "down"
	} else {
		status["img2vec"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
