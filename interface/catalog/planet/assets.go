package planet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/airbusgeo/planet-ingester/service"
)

// Asset statuses returned by the Data API
const (
	AssetInactive   = "inactive"
	AssetActivating = "activating"
	AssetActive     = "active"
	AssetFailed     = "failed"
)

// Asset is one deliverable artifact of a scene
type Asset struct {
	Type     string `json:"type,omitempty"`
	Status   string `json:"status"`
	Location string `json:"location,omitempty"` // signed byte-serving url, set once active
	Links    Links  `json:"_links"`
}

// ErrAssetNotFound is raised when a scene has no asset of the requested type
type ErrAssetNotFound struct {
	AssetType string
	Available []string
}

func (e ErrAssetNotFound) Error() string {
	return fmt.Sprintf("asset %s not found (available: %s)", e.AssetType, strings.Join(e.Available, ", "))
}

// AssetsURL returns the asset-collection url of a scene
func (c *Client) AssetsURL(itemType, sceneID string) string {
	return fmt.Sprintf("%s/item-types/%s/items/%s/assets", c.endpoint(), itemType, sceneID)
}

// Assets fetches the asset collection of a scene, keyed by asset type
func (c *Client) Assets(ctx context.Context, assetsURL string) (map[string]Asset, error) {
	body, err := service.HTTPGetWithAuth(ctx, assetsURL, c.APIKey, "")
	if err != nil {
		return nil, fmt.Errorf("Assets.%w", err)
	}
	assets := map[string]Asset{}
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, fmt.Errorf("Assets.Unmarshal: %w", err)
	}
	return assets, nil
}

// Asset fetches one asset of a scene
// Returns ErrAssetNotFound if the scene has no asset of this type.
func (c *Client) Asset(ctx context.Context, assetsURL, assetType string) (Asset, error) {
	assets, err := c.Assets(ctx, assetsURL)
	if err != nil {
		return Asset{}, err
	}
	asset, ok := assets[assetType]
	if !ok {
		available := make([]string, 0, len(assets))
		for t := range assets {
			available = append(available, t)
		}
		sort.Strings(available)
		return Asset{}, ErrAssetNotFound{AssetType: assetType, Available: available}
	}
	return asset, nil
}

// Activate requests the activation of the asset. Fire-and-forget: the
// response body is discarded, readiness is observed by polling the assets.
func (c *Client) Activate(ctx context.Context, asset Asset) error {
	if asset.Links.Activate == "" {
		return fmt.Errorf("Activate: no activation link")
	}
	if _, err := service.HTTPGetWithAuth(ctx, asset.Links.Activate, c.APIKey, ""); err != nil {
		return fmt.Errorf("Activate.%w", err)
	}
	return nil
}

// DownloadLocation resolves the byte-serving url of an active asset from its
// self link
func (c *Client) DownloadLocation(ctx context.Context, asset Asset) (string, error) {
	if asset.Links.Self == "" {
		return "", fmt.Errorf("DownloadLocation: no self link")
	}
	body, err := service.HTTPGetWithAuth(ctx, asset.Links.Self, c.APIKey, "")
	if err != nil {
		return "", fmt.Errorf("DownloadLocation.%w", err)
	}
	resolved := Asset{}
	if err := json.Unmarshal(body, &resolved); err != nil {
		return "", fmt.Errorf("DownloadLocation.Unmarshal: %w", err)
	}
	if resolved.Location == "" {
		return "", fmt.Errorf("DownloadLocation: no location for %s asset", resolved.Status)
	}
	return resolved.Location, nil
}
