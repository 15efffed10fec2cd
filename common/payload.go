package common

import (
	"time"
)

const (
	ResultTypeScene  = "scene"
	ResultTypeReport = "report"
)

// SceneLinks are the navigation links attached to a catalog feature
type SceneLinks struct {
	Assets    string `json:"assets"`
	Thumbnail string `json:"thumbnail"`
}

// Scene is a catalog item returned by the imagery search
type Scene struct {
	SourceID    string                 `json:"id"`
	Date        time.Time              `json:"date"`     // acquisition date, encoded in the identifier prefix
	Acquired    time.Time              `json:"acquired"` // full acquisition timestamp
	CloudCover  float64                `json:"cloud_cover"`
	Links       SceneLinks             `json:"_links"`
	GeometryWKT string                 `json:"geometry_wkt,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// AssetState tracks the activation of one asset of a scene.
// Location is only populated once the asset is active, ActivationURL only while it is not.
type AssetState struct {
	SceneID       string      `json:"scene_id"`
	AssetType     string      `json:"asset_type"`
	Status        AssetStatus `json:"status"`
	AssetsURL     string      `json:"assets_url,omitempty"`
	ActivationURL string      `json:"activation_url,omitempty"`
	Location      string      `json:"location,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// DownloadResult is the terminal state of one scene download
type DownloadResult struct {
	SceneID   string  `json:"scene_id"`
	LocalPath string  `json:"local_path,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
}

// Report summarizes an acquisition run.
// FullyReady is true iff every supported asset reached readiness within the polling budget.
type Report struct {
	Project           string           `json:"project"`
	Candidates        int              `json:"candidates"`
	Unsupported       int              `json:"unsupported"`
	FailedActivations int              `json:"failed_activations"`
	Pending           int              `json:"pending"`
	Ready             int              `json:"ready"`
	FullyReady        bool             `json:"fully_ready"`
	Saved             int              `json:"saved"`
	AlreadyPresent    int              `json:"already_present"`
	FailedDownloads   int              `json:"failed_downloads"`
	Results           []DownloadResult `json:"results"`
}

// Result is the payload published to the events topic
type Result struct {
	Type    string  `json:"type"` // scene (ResultTypeScene) or report (ResultTypeReport)
	SceneID string  `json:"scene_id,omitempty"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
	Report  *Report `json:"report,omitempty"`
}
