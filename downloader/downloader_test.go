package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/service"
)

// fakeDataAPI serves the asset documents and bytes of a set of scenes
type fakeDataAPI struct {
	byteFetches int
	payload     string
}

func (f *fakeDataAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		server := "http://" + req.Host
		switch {
		case strings.HasPrefix(req.URL.Path, "/assets/"):
			id := strings.TrimPrefix(req.URL.Path, "/assets/")
			fmt.Fprintf(w, `{"analytic": {"status": "active", "_links": {"_self": "%s/asset/%s"}}}`, server, id)
		case strings.HasPrefix(req.URL.Path, "/asset/"):
			id := strings.TrimPrefix(req.URL.Path, "/asset/")
			fmt.Fprintf(w, `{"status": "active", "location": "%s/download/%s"}`, server, id)
		case strings.HasPrefix(req.URL.Path, "/download/"):
			f.byteFetches++
			fmt.Fprint(w, f.payload)
		default:
			w.WriteHeader(404)
		}
	})
}

func activeState(server, id string) *common.AssetState {
	return &common.AssetState{
		SceneID:   id,
		AssetType: "analytic",
		Status:    common.StatusACTIVE,
		AssetsURL: server + "/assets/" + id,
	}
}

func TestDownloadIdempotence(t *testing.T) {
	api := fakeDataAPI{payload: "imagery bytes"}
	ts := httptest.NewServer(api.handler())
	defer ts.Close()

	imageryDir := t.TempDir()
	d := Downloader{Planet: &planet.Client{APIKey: "test-key", Endpoint: ts.URL}}
	states := map[string]*common.AssetState{
		"20200601_093245_1054": activeState(ts.URL, "20200601_093245_1054"),
	}

	results := d.DownloadBatch(context.Background(), states, imageryDir)
	if len(results) != 1 || results[0].Outcome != common.OutcomeSAVED {
		t.Fatalf("expected one SAVED result, got %+v", results)
	}
	content, err := os.ReadFile(results[0].LocalPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "imagery bytes" {
		t.Errorf("unexpected file content: %s", content)
	}

	// Second run skips the network entirely
	results = d.DownloadBatch(context.Background(), states, imageryDir)
	if len(results) != 1 || results[0].Outcome != common.OutcomeEXISTS {
		t.Fatalf("expected one EXISTS result, got %+v", results)
	}
	if api.byteFetches != 1 {
		t.Errorf("expected exactly 1 byte fetch, got %d", api.byteFetches)
	}

	// No scratch dir left behind
	entries, err := os.ReadDir(imageryDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the image only in %s, got %d entries", imageryDir, len(entries))
	}
}

func TestDownloadFailureIsolation(t *testing.T) {
	api := fakeDataAPI{payload: "imagery bytes"}
	ts := httptest.NewServer(api.handler())
	defer ts.Close()

	imageryDir := t.TempDir()
	d := Downloader{Planet: &planet.Client{APIKey: "test-key", Endpoint: ts.URL}}
	broken := activeState(ts.URL, "20200602_110214_1005")
	broken.AssetsURL = ts.URL + "/nowhere"
	states := map[string]*common.AssetState{
		"20200601_093245_1054": activeState(ts.URL, "20200601_093245_1054"),
		"20200602_110214_1005": broken,
	}

	outcomes := map[string]common.Outcome{}
	for _, result := range d.DownloadBatch(context.Background(), states, imageryDir) {
		outcomes[result.SceneID] = result.Outcome
	}
	if outcomes["20200601_093245_1054"] != common.OutcomeSAVED {
		t.Errorf("expected SAVED, got %v", outcomes["20200601_093245_1054"])
	}
	if outcomes["20200602_110214_1005"] != common.OutcomeFAILED {
		t.Errorf("expected FAILED, got %v", outcomes["20200602_110214_1005"])
	}

	exists, err := service.FileExists(filepath.Join(imageryDir, "20200602_110214_1005.tif"))
	if err != nil || exists {
		t.Errorf("failed download must not leave a file (%v)", err)
	}
}
