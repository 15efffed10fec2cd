package entities

import (
	"fmt"
	"os"
	"time"

	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/geometry"
	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/paulsmith/gogeos/geos"
	"github.com/pelletier/go-toml/v2"
)

// AreaToAcquire describes one acquisition batch: which scenes to search for,
// which asset to activate and where the area of interest comes from.
// It is the toml request file in CLI mode and the json request body in server mode.
type AreaToAcquire struct {
	Project    string            `toml:"project_name" json:"project_name"`
	APIKey     string            `toml:"api_key" json:"api_key,omitempty"`
	ItemType   string            `toml:"item_type" json:"item_type"`
	AssetType  string            `toml:"asset_type" json:"asset_type"`
	StartDate  string            `toml:"start_date" json:"start_date"`
	EndDate    string            `toml:"end_date" json:"end_date"`
	MaxCloud   float64           `toml:"max_cloud_cover" json:"max_cloud_cover"`
	AOIPath    string            `toml:"aoi_path" json:"aoi_path,omitempty"`
	AOI        *geojson.Geometry `toml:"-" json:"aoi,omitempty"` // inline alternative to AOIPath
	Attributes map[string]string `toml:"attributes" json:"attributes,omitempty"`
}

// LoadArea reads an acquisition request from a toml file
func LoadArea(path string) (*AreaToAcquire, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadArea.ReadFile: %w", err)
	}
	area := AreaToAcquire{}
	if err := toml.Unmarshal(file, &area); err != nil {
		return nil, fmt.Errorf("LoadArea.Unmarshal: %w", err)
	}
	if err := area.Validate(); err != nil {
		return nil, fmt.Errorf("LoadArea.%w", err)
	}
	return &area, nil
}

// Validate checks that the request carries everything the pipeline needs
func (a *AreaToAcquire) Validate() error {
	switch {
	case a.Project == "":
		return fmt.Errorf("Validate: missing project_name")
	case a.ItemType == "":
		return fmt.Errorf("Validate: missing item_type")
	case a.AssetType == "":
		return fmt.Errorf("Validate: missing asset_type")
	case a.AOIPath == "" && a.AOI == nil:
		return fmt.Errorf("Validate: missing aoi_path or inline aoi")
	case a.MaxCloud < 0 || a.MaxCloud > 1:
		return fmt.Errorf("Validate: max_cloud_cover must be a fraction in [0, 1]")
	}
	if _, _, err := a.Interval(); err != nil {
		return fmt.Errorf("Validate.%w", err)
	}
	return nil
}

// Interval parses the requested interval of acquisition dates
func (a *AreaToAcquire) Interval() (time.Time, time.Time, error) {
	start, err := dateparse.ParseAny(a.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("Interval.start_date: %w", err)
	}
	end, err := dateparse.ParseAny(a.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("Interval.end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("Interval: end_date %s is before start_date %s", a.EndDate, a.StartDate)
	}
	return start, end, nil
}

// LoadAOI returns the area of interest as a geos geometry, either from the
// inline geometry or from the geojson file at AOIPath
func (a *AreaToAcquire) LoadAOI() (*geos.Geometry, error) {
	if a.AOI != nil {
		aoi, err := geometry.GeomToGeos(a.AOI.Geometry)
		if err != nil {
			return nil, fmt.Errorf("LoadAOI.%w", err)
		}
		return aoi, nil
	}
	file, err := os.ReadFile(a.AOIPath)
	if err != nil {
		return nil, fmt.Errorf("LoadAOI.ReadFile: %w", err)
	}
	g, err := service.UnmarshalGeometry(file)
	if err != nil {
		return nil, fmt.Errorf("LoadAOI.UnmarshalGeometry: %w", err)
	}
	aoi, err := geometry.GeomToGeos(g)
	if err != nil {
		return nil, fmt.Errorf("LoadAOI.%w", err)
	}
	return aoi, nil
}
