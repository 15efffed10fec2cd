package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/airbusgeo/planet-ingester/catalog"
	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/service/log"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AddHandler registers the ingestion route: POST /ingest runs the whole
// pipeline synchronously and returns the report.
func (wf *Workflow) AddHandler(r *mux.Router) {
	r.HandleFunc("/ingest", wf.ingestHandler).Methods("POST")
}

func (wf *Workflow) ingestHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	area := entities.AreaToAcquire{}
	if err := json.NewDecoder(req.Body).Decode(&area); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}
	if err := area.Validate(); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	report, err := wf.Run(ctx, &area)
	if err != nil {
		if errors.As(err, &catalog.ErrEmptyCandidateSet{}) {
			w.WriteHeader(404)
		} else {
			w.WriteHeader(500)
		}
		log.Logger(ctx).Warn("ingestHandler", zap.Error(err))
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Logger(ctx).Warn("ingestHandler.Encode", zap.Error(err))
	}
}
