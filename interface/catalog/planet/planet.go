package planet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/geometry"
)

const (
	// DefaultEndpoint is the root of the Planet Data API
	DefaultEndpoint = "https://api.planet.com/data/v1"

	quickSearchPath = "/quick-search"
)

// Client accesses the Planet Data API.
// Every call carries basic auth with the api key as username and an empty password.
type Client struct {
	APIKey   string
	Endpoint string // empty for DefaultEndpoint
}

// SearchQuery filters a scene search
type SearchQuery struct {
	ItemType  string
	StartTime time.Time
	EndTime   time.Time
	MaxCloud  float64 // cloud-cover fraction in [0, 1]
}

// Links carries the navigation urls of the Data API documents
type Links struct {
	Self      string `json:"_self,omitempty"`
	Next      string `json:"_next,omitempty"`
	Assets    string `json:"assets,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Activate  string `json:"activate,omitempty"`
}

type searchData struct {
	Links    Links     `json:"_links"`
	Features []feature `json:"features"`
}

type feature struct {
	Id         string                 `json:"id"`
	Links      Links                  `json:"_links"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type searchFilter struct {
	Type      string      `json:"type"`
	FieldName string      `json:"field_name,omitempty"`
	Config    interface{} `json:"config"`
}

type dateRange struct {
	GTE string `json:"gte"`
	LTE string `json:"lte"`
}

type cloudRange struct {
	LTE float64 `json:"lte"`
}

type quickSearch struct {
	ItemTypes []string     `json:"item_types"`
	Filter    searchFilter `json:"filter"`
}

func (c *Client) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(c.Endpoint, "/")
}

// SearchScenes queries the catalog for the scenes acquired over the aoi during the
// given interval of time, within the cloud-cover budget
func (c *Client) SearchScenes(ctx context.Context, query SearchQuery, aoi geos.Geometry) ([]*common.Scene, error) {
	g, err := geometry.GeosToGeom(&aoi)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes.%w", err)
	}

	startDate := query.StartTime.Format("2006-01-02") + "T00:00:00.000Z"
	endDate := query.EndTime.Format("2006-01-02") + "T00:00:00.000Z"

	search := quickSearch{
		ItemTypes: []string{query.ItemType},
		Filter: searchFilter{
			Type: "AndFilter",
			Config: []searchFilter{
				{Type: "GeometryFilter", FieldName: "geometry", Config: geojson.Geometry{Geometry: g}},
				{Type: "DateRangeFilter", FieldName: "acquired", Config: dateRange{GTE: startDate, LTE: endDate}},
				{Type: "RangeFilter", FieldName: "cloud_cover", Config: cloudRange{LTE: query.MaxCloud}},
			},
		},
	}

	features, err := c.queryCatalog(ctx, c.endpoint()+quickSearchPath, search)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes.%w", err)
	}

	// Parse results
	scenes := make([]*common.Scene, len(features))
	for i, feature := range features {
		date, err := common.AcquisitionDate(feature.Id)
		if err != nil {
			return nil, fmt.Errorf("SearchScenes.%w", err)
		}
		acquiredStr, _ := feature.Properties["acquired"].(string)
		acquired, err := dateparse.ParseAny(acquiredStr)
		if err != nil {
			return nil, fmt.Errorf("SearchScenes.parse acquired property of %s: %w", feature.Id, err)
		}
		cloudCover, _ := feature.Properties["cloud_cover"].(float64)

		links := common.SceneLinks{
			Assets:    feature.Links.Assets,
			Thumbnail: feature.Links.Thumbnail,
		}
		if links.Assets == "" {
			// Some responses omit the assets link; it is derivable
			links.Assets = c.AssetsURL(query.ItemType, feature.Id)
		}

		scenes[i] = &common.Scene{
			SourceID:   feature.Id,
			Date:       date,
			Acquired:   acquired,
			CloudCover: cloudCover,
			Links:      links,
			Properties: feature.Properties,
		}
		if feature.Geometry != nil {
			scenes[i].GeometryWKT = wkt.MustEncode(feature.Geometry.Geometry)
		}
	}

	return scenes, nil
}

func (c *Client) queryCatalog(ctx context.Context, url string, search quickSearch) ([]feature, error) {
	reqBody := &bytes.Buffer{}
	if err := json.NewEncoder(reqBody).Encode(search); err != nil {
		return nil, fmt.Errorf("queryCatalog.json.encode: %w", err)
	}

	features := []feature{}
	firstPage := true
	for url != "" {
		var respBody []byte
		var err error
		if firstPage {
			// The search itself is a POST; result pages are plain GETs
			respBody, err = c.postQuery(ctx, url, reqBody)
			firstPage = false
		} else {
			var req *http.Request
			if req, err = http.NewRequestWithContext(ctx, "GET", url, nil); err != nil {
				return nil, err
			}
			req.SetBasicAuth(c.APIKey, "")
			respBody, err = service.GetBodyRetryReq(req, 4)
		}
		if err != nil {
			return nil, fmt.Errorf("queryCatalog.%w", err)
		}

		page := searchData{}
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("queryCatalog.parse body (%s): %w", url, err)
		}
		features = append(features, page.Features...)
		if len(page.Features) == 0 {
			break
		}

		// Follow the next page of the catalog
		url = page.Links.Next
	}

	return features, nil
}

func (c *Client) postQuery(ctx context.Context, url string, body io.Reader) ([]byte, error) {
	resp, err := service.HTTPPostWithAuth(ctx, url, body, c.APIKey, "")
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("postQuery: %w", err))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("postQuery.ReadAll: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("postQuery %s: %s: %s", url, resp.Status, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, err
		}
		return nil, service.MakeTemporary(err)
	}
	return respBody, nil
}

// Thumbnail fetches the preview image of a scene
func (c *Client) Thumbnail(ctx context.Context, thumbnailURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", thumbnailURL, nil)
	if err != nil {
		return nil, fmt.Errorf("Thumbnail: %w", err)
	}
	req.SetBasicAuth(c.APIKey, "")
	body, err := service.GetBodyRetryReq(req, 4)
	if err != nil {
		return nil, fmt.Errorf("Thumbnail.GetBodyRetryReq: %w", err)
	}
	return body, nil
}
