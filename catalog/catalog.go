package catalog

import (
	"context"
	"fmt"

	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/service/log"
	"github.com/paulsmith/gogeos/geos"
)

// ErrEmptyCandidateSet is returned when no scene survives the selection
// pipeline. It is a terminal condition for the run.
type ErrEmptyCandidateSet struct {
	Project string
}

func (e ErrEmptyCandidateSet) Error() string {
	return fmt.Sprintf("no candidate scene left for project %s", e.Project)
}

// Catalog searches the scene catalog and selects the candidate scenes of an
// acquisition batch
type Catalog struct {
	Planet *planet.Client

	// Workers bounds the thumbnail fetching pool (default 10)
	Workers int

	// Screen classifies a preview file as usable. Defaults to preview.UsableScene.
	Screen func(path string) (bool, error)
}

// ScenesInventory searches the catalog for the scenes covering the area
// during the requested interval and selects the candidates: one scene per
// acquisition date, intersecting the true aoi, with a usable preview.
// Thumbnails are cached in thumbsDir.
func (c *Catalog) ScenesInventory(ctx context.Context, area *entities.AreaToAcquire, aoi geos.Geometry, thumbsDir string) ([]*common.Scene, error) {
	start, end, err := area.Interval()
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}

	// The search geometry is the convex hull of the aoi: the catalog rejects
	// self-intersecting polygons, and the true aoi is re-applied below.
	hull, err := aoi.ConvexHull()
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.ConvexHull: %w", err)
	}

	scenes, err := c.Planet.SearchScenes(ctx, planet.SearchQuery{
		ItemType:  area.ItemType,
		StartTime: start,
		EndTime:   end,
		MaxCloud:  area.MaxCloud,
	}, *hull)
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}
	log.Logger(ctx).Sugar().Debugf("%d scenes found", len(scenes))

	// Refine inventory: true aoi intersection, then one usable scene per date
	if scenes, err = removeOutsideAOI(scenes, aoi); err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}
	if scenes, err = c.selectScenes(ctx, groupByDate(scenes), thumbsDir); err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}

	if len(scenes) == 0 {
		return nil, ErrEmptyCandidateSet{Project: area.Project}
	}
	log.Logger(ctx).Sugar().Infof("%d candidate scenes", len(scenes))
	return scenes, nil
}
