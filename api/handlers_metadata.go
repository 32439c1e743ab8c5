package api

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"arcsat.dev/satellite/metadataengine"
	"arcsat.dev/satellite/pipeline"
)

func (s *Server) handleMetadataPlugin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	arcid, plugin := vars["arcid"], vars["plugin"]

	if !s.Runner.Locks().TryWLock() {
		writeError(w, http.StatusLocked, pipeline.ErrBusy)
		return
	}
	defer s.Runner.Locks().WUnlock()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	err := metadataengine.ProcessOne(r.Context(), s.Jobs, s.LRR, arcid, plugin, s.MetadataSleepSeconds, rng, s.Log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"arcid": arcid, "plugin": plugin, "status": "processed"})
}
