package catalog

import (
	"fmt"
	"runtime"
	"time"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/paulsmith/gogeos/geos"
)

// removeOutsideAOI removes scenes that are located outside the AOI
// The search works over the convex hull of the AOI. This may then include
// acquisitions that do not overlap with the AOI. In this step we sort out the
// scenes whose footprint is completely outside the actual AOI.
func removeOutsideAOI(scenes []*common.Scene, aoi geos.Geometry) ([]*common.Scene, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	j := 0
	for i, scene := range scenes {
		if scene.GeometryWKT == "" {
			// No footprint: the search filter is the only evidence, keep it
			scenes[j] = scenes[i]
			j++
			continue
		}
		footprint, err := geos.FromWKT(scene.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.FromWKT: %w", err)
		}
		intersect, err := paoi.Intersects(footprint)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
		}
		if intersect {
			scenes[j] = scenes[i]
			j++
		}
	}
	runtime.KeepAlive(aoi)

	return scenes[0:j], nil
}

// groupByDate groups the scenes by acquisition date, preserving the catalog
// response order within a group and across groups (ordered by the first
// scene of each date). A satellite pass produces several scenes of the same
// area within minutes; only one per day will be retained, without ranking:
// the first usable scene of each group wins (see selectScenes).
func groupByDate(scenes []*common.Scene) [][]*common.Scene {
	byDate := map[time.Time]int{}
	var groups [][]*common.Scene

	for _, scene := range scenes {
		if i, ok := byDate[scene.Date]; ok {
			groups[i] = append(groups[i], scene)
		} else {
			byDate[scene.Date] = len(groups)
			groups = append(groups, []*common.Scene{scene})
		}
	}

	return groups
}
