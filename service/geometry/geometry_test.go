package geometry

import (
	"encoding/json"
	"testing"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/paulsmith/gogeos/geos"
)

func TestGeosToGeom(t *testing.T) {
	polygon, err := geos.FromWKT("POLYGON ((20 35, 10 30, 10 10, 30 5, 45 20, 20 35), (30 20, 20 15, 20 25, 30 20))")
	if err != nil {
		t.Error(err)
	}
	g, err := GeosToGeom(polygon)
	if err != nil {
		t.Error(err)
	}
	bytes, err := json.Marshal(geojson.Geometry{Geometry: g})
	if err != nil {
		t.Error(err)
	}
	expected := `{"type":"Polygon","coordinates":[[[20,35],[10,30],[10,10],[30,5],[45,20],[20,35]],[[30,20],[20,15],[20,25],[30,20]]]}`
	if string(bytes) != expected {
		t.Errorf("Expect %s found %s", expected, string(bytes))
	}
}

func TestGeomToGeos(t *testing.T) {
	wktAOI := "POLYGON ((129 -11, 130 -11, 130 -12, 129 -12, 129 -11))"
	g := geojson.Geometry{}
	if err := g.UnmarshalJSON([]byte(`{"type":"Polygon","coordinates":[[[129,-11],[130,-11],[130,-12],[129,-12],[129,-11]]]}`)); err != nil {
		t.Fatal(err)
	}
	geometry, err := GeomToGeos(g.Geometry)
	if err != nil {
		t.Fatal(err)
	}
	expected, err := geos.FromWKT(wktAOI)
	if err != nil {
		t.Fatal(err)
	}
	if equal, err := geometry.Equals(expected); err != nil {
		t.Error(err)
	} else if !equal {
		t.Errorf("expect %s found %v", wktAOI, geometry)
	}
}
