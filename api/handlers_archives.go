package api

import (
	"context"
	"net/http"

	"arcsat.dev/satellite/pipeline"
	"arcsat.dev/satellite/scanengine"
	"arcsat.dev/satellite/uploadengine"
)

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if !s.Runner.Locks().TryRLock() {
		writeError(w, http.StatusLocked, pipeline.ErrBusy)
		return
	}

	receipt, err := s.Runner.Submit(context.Background(), pipeline.Job{
		LockName: pipeline.LockContents,
		Run: func(ctx context.Context) error {
			defer s.Runner.Locks().RUnlock()
			return scanengine.Scan(ctx, s.Jobs, s.ContentsDir, s.Log)
		},
	})
	if err != nil {
		s.Runner.Locks().RUnlock()
		writeError(w, http.StatusLocked, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"receipt": receipt.ID})
}

func (s *Server) handleDeleteCorrupted(w http.ResponseWriter, r *http.Request) {
	if !s.Runner.Locks().TryWLock() {
		writeError(w, http.StatusLocked, pipeline.ErrBusy)
		return
	}
	defer s.Runner.Locks().WUnlock()

	deleted, err := scanengine.DeleteCorrupted(s.Jobs, s.Log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	dirMode := r.URL.Query().Get("dir_mode") == "true"

	receipt, err := s.Runner.Submit(context.Background(), pipeline.Job{
		LockName: pipeline.LockContents,
		Run: func(ctx context.Context) error {
			return uploadengine.Upload(ctx, s.Jobs, s.LRR, s.ContentsDir, dirMode, s.Log)
		},
	})
	if err != nil {
		writeError(w, http.StatusLocked, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"receipt": receipt.ID})
}
