package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zeebo/errs"

	"arcsat.dev/satellite/embeddingengine"
	"arcsat.dev/satellite/pipeline"
	"arcsat.dev/satellite/similarity"
)

// Error is the api package's error class.
var Error = errs.Class("api")

func (s *Server) handleIngestEmbeddings(w http.ResponseWriter, r *http.Request) {
	arcid := mux.Vars(r)["arcid"]
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, Error.New("path query parameter is required"))
		return
	}

	// handleIngestEmbeddings runs synchronously (the caller wants the
	// resulting Page rows immediately), so it takes the named lock directly
	// rather than going through Runner.Submit's async path.
	if !s.Runner.Locks().TryLock(pipeline.LockPageEmbeddings) {
		writeError(w, http.StatusLocked, pipeline.ErrBusy)
		return
	}
	defer s.Runner.Locks().Unlock(pipeline.LockPageEmbeddings)

	err := embeddingengine.IngestArchive(r.Context(), s.Vectors, s.Img2Vec, arcid, embeddingengine.NewZipPageSource(path), s.Log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"arcid": arcid, "status": "ingested"})
}

func (s *Server) handleComputeSubarchives(w http.ResponseWriter, r *http.Request) {
	if !s.Runner.Locks().TryLock(pipeline.LockSubarchives) {
		writeError(w, http.StatusLocked, pipeline.ErrBusy)
		return
	}
	defer s.Runner.Locks().Unlock(pipeline.LockSubarchives)

	threshold := s.SimilarityThreshold
	if threshold == 0 {
		threshold = similarity.DefaultThreshold
	}
	if err := similarity.ComputeSubarchives(r.Context(), s.Vectors, s.LRR, threshold, s.Log); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "computed"})
}

func (s *Server) handleSubarchiveMap(w http.ResponseWriter, r *http.Request) {
	arcid := mux.Vars(r)["arcid"]
	root, err := s.Vectors.GetRootSubarchive(arcid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	children, err := s.Vectors.Children(root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"arcid":    arcid,
		"root":     root,
		"children": children,
	})
}

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	pairs, err := similarity.GetDuplicateArchives(s.Vectors)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleRemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("is_dry_run") == "true"

	summary, err := similarity.RemoveDuplicates(r.Context(), s.Vectors, s.LRR, s.ContentsDir, s.DoNotDownloadFile, dryRun, s.Log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_count": summary.DeletedCount,
		"deleted_bytes": summary.DeletedBytes,
		"failed_count":  summary.FailedCount,
		"total_bytes":   summary.TotalBytes,
	})
}
