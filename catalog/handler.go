package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/log"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AddHandler registers the scene-selection route. Thumbnails are cached
// below dataDir using the project/date-range layout.
func (c *Catalog) AddHandler(r *mux.Router, dataDir string) {
	r.HandleFunc("/catalog/scenes", func(w http.ResponseWriter, req *http.Request) {
		c.scenesHandler(dataDir, w, req)
	}).Methods("POST")
}

// loadAreaBody decodes the acquisition request of a server-mode call
func loadAreaBody(req *http.Request) (*entities.AreaToAcquire, error) {
	area := entities.AreaToAcquire{}
	if err := json.NewDecoder(req.Body).Decode(&area); err != nil {
		return nil, fmt.Errorf("loadAreaBody: %w", err)
	}
	if err := area.Validate(); err != nil {
		return nil, fmt.Errorf("loadAreaBody.%w", err)
	}
	return &area, nil
}

func (c *Catalog) scenesHandler(dataDir string, w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	area, err := loadAreaBody(req)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}
	ctx = log.With(ctx, "project", area.Project)

	aoi, err := area.LoadAOI()
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	start, end, _ := area.Interval()
	thumbsDir := service.ThumbnailsDir(dataDir, area.Project, start, end)
	if err := service.EnsureDirs(thumbsDir); err != nil {
		w.WriteHeader(500)
		fmt.Fprintf(w, "%v", err)
		return
	}

	scenes, err := c.ScenesInventory(ctx, area, *aoi, thumbsDir)
	if err != nil {
		if errors.As(err, &ErrEmptyCandidateSet{}) {
			w.WriteHeader(404)
		} else {
			w.WriteHeader(500)
		}
		log.Logger(ctx).Warn("scenesHandler", zap.Error(err))
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Scenes interface{} `json:"scenes"`
	}{scenes}); err != nil {
		log.Logger(ctx).Warn("scenesHandler.Encode", zap.Error(err))
	}
}
