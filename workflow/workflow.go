package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airbusgeo/planet-ingester/catalog"
	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/downloader"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/interface/messaging"
	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/log"
	"go.uber.org/zap"
)

// Polling budget: activation latency is unbounded and the provider offers no
// push notification, so readiness is re-observed a fixed number of times.
// Exhausting the budget is not an error: the run proceeds with the assets
// that became ready.
const (
	MaxPollRounds       = 21
	DefaultPollInterval = 30 * time.Second

	activationTries = 3
)

// Workflow drives one acquisition batch end to end: scene selection, asset
// activation, readiness polling and download.
type Workflow struct {
	Planet     *planet.Client
	Catalog    *catalog.Catalog
	Downloader *downloader.Downloader

	// DataDir is the root of the local imagery storage
	DataDir string

	// PollInterval is the pause between two polling rounds (default 30s)
	PollInterval time.Duration

	// Events optionally receives one message per terminal scene and the final report
	Events messaging.Publisher
}

func NewWorkflow(client *planet.Client, dataDir string, events messaging.Publisher) *Workflow {
	return &Workflow{
		Planet:     client,
		Catalog:    &catalog.Catalog{Planet: client},
		Downloader: &downloader.Downloader{Planet: client},
		DataDir:    dataDir,
		Events:     events,
	}
}

// Run executes the acquisition batch described by area and returns the report.
// Only a catalog failure or an empty candidate set aborts the run; any other
// failure is isolated to its scene and reported individually.
func (wf *Workflow) Run(ctx context.Context, area *entities.AreaToAcquire) (*common.Report, error) {
	ctx = log.WithFields(ctx, zap.String("project", area.Project))

	aoi, err := area.LoadAOI()
	if err != nil {
		return nil, fmt.Errorf("Run.%w", err)
	}

	start, end, err := area.Interval()
	if err != nil {
		return nil, fmt.Errorf("Run.%w", err)
	}
	imageryDir := service.ImageryDir(wf.DataDir, area.Project, start, end)
	thumbsDir := service.ThumbnailsDir(wf.DataDir, area.Project, start, end)
	if err := service.EnsureDirs(imageryDir, thumbsDir); err != nil {
		return nil, fmt.Errorf("Run.%w", err)
	}

	// Select the candidate scenes
	scenes, err := wf.Catalog.ScenesInventory(ctx, area, *aoi, thumbsDir)
	if err != nil {
		return nil, fmt.Errorf("Run.%w", err)
	}

	// Activate, poll, download
	states := wf.ActivateAssets(ctx, scenes, area.AssetType)
	fullyReady, err := wf.PollReadiness(ctx, states)
	if err != nil {
		return nil, fmt.Errorf("Run.%w", err)
	}
	results := wf.Downloader.DownloadBatch(ctx, readyStates(states), imageryDir)

	report := newReport(area.Project, scenes, states, fullyReady, results)
	wf.publishEvents(ctx, states, report)
	logReport(ctx, report)

	if err := service.ToJSON(report, service.SceneFilePath(imageryDir, "report", service.ExtensionJSON)); err != nil {
		log.Logger(ctx).Sugar().Warnf("Run: %v", err)
	}
	return report, nil
}

// ActivateAssets requests the activation of one asset type for each scene.
// Each scene ends up in exactly one state, keyed by its identifier:
// ACTIVE (already available), ACTIVATING (activation requested), UNSUPPORTED
// (asset type not delivered for this scene, or status not understood) or
// FAILED (remote call failed). Unsupported and failed scenes leave the
// workflow here and are never polled.
func (wf *Workflow) ActivateAssets(ctx context.Context, scenes []*common.Scene, assetType string) map[string]*common.AssetState {
	states := map[string]*common.AssetState{}
	for _, scene := range scenes {
		state := &common.AssetState{
			SceneID:   scene.SourceID,
			AssetType: assetType,
			Status:    common.StatusINACTIVE,
			AssetsURL: scene.Links.Assets,
		}
		states[scene.SourceID] = state

		asset, err := wf.Planet.Asset(ctx, state.AssetsURL, assetType)
		if err != nil {
			if notFound := (planet.ErrAssetNotFound{}); errors.As(err, &notFound) {
				log.Logger(ctx).Sugar().Infof("%s: %v", scene.SourceID, notFound)
				state.Status = common.StatusUNSUPPORTED
				state.Message = notFound.Error()
			} else {
				log.Logger(ctx).Sugar().Warnf("activate %s: %v", scene.SourceID, err)
				state.Status = common.StatusFAILED
				state.Message = err.Error()
			}
			continue
		}

		switch asset.Status {
		case planet.AssetActive:
			// Already available, no activation call
			state.Status = common.StatusACTIVE
			state.Location = asset.Location
		case planet.AssetInactive:
			state.ActivationURL = asset.Links.Activate
			err := service.Retriable(ctx, func() error {
				return wf.Planet.Activate(ctx, asset)
			}, wf.pollInterval(), activationTries)
			// The activation link only makes sense while the asset is inactive
			state.ActivationURL = ""
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("activate %s: %v", scene.SourceID, err)
				state.Status = common.StatusFAILED
				state.Message = err.Error()
			} else {
				state.Status = common.StatusACTIVATING
			}
		case planet.AssetActivating:
			// Activation already requested (typically by a previous run):
			// poll it rather than dropping an in-flight activation
			state.Status = common.StatusACTIVATING
		default:
			log.Logger(ctx).Sugar().Warnf("%s: unhandled asset status %q", scene.SourceID, asset.Status)
			state.Status = common.StatusUNSUPPORTED
			state.Message = fmt.Sprintf("unhandled asset status %q", asset.Status)
		}
	}
	return states
}

// PollReadiness re-observes the status of every ACTIVATING asset in rounds
// until each becomes active or failed, within the polling budget. It returns
// whether every pending asset resolved to ACTIVE. The only error is a
// cancellation of ctx during the pause between two rounds.
func (wf *Workflow) PollReadiness(ctx context.Context, states map[string]*common.AssetState) (bool, error) {
	pending := service.StringSet{}
	for id, state := range states {
		if state.Status == common.StatusACTIVATING {
			pending.Push(id)
		}
	}
	// The run is fully ready iff every asset of the initial pending set
	// resolves to ACTIVE within the budget
	initial := pending.Slice()

	for round := 0; round < MaxPollRounds && len(pending) > 0; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				return false, fmt.Errorf("PollReadiness: %w", ctx.Err())
			case <-time.After(wf.pollInterval()):
			}
		}
		log.Logger(ctx).Sugar().Debugf("polling round %d/%d: %d pending", round+1, MaxPollRounds, len(pending))

		// The next round's pending set is a fresh collection
		next := service.StringSet{}
		for _, id := range pending.Slice() {
			state := states[id]
			asset, err := wf.Planet.Asset(ctx, state.AssetsURL, state.AssetType)
			if err != nil {
				// Transient or not, re-observed next round within the budget
				log.Logger(ctx).Sugar().Warnf("poll %s: %v", id, err)
				next.Push(id)
				continue
			}
			switch asset.Status {
			case planet.AssetActive:
				state.Status = common.StatusACTIVE
				state.Location = asset.Location
			case planet.AssetFailed:
				log.Logger(ctx).Sugar().Warnf("%s: activation failed", id)
				state.Status = common.StatusFAILED
				state.Message = "activation failed"
			default:
				next.Push(id)
			}
		}
		pending = next
	}

	if len(pending) > 0 {
		log.Logger(ctx).Sugar().Warnf("polling budget exhausted with %d assets still pending", len(pending))
		return false, nil
	}
	for _, id := range initial {
		if states[id].Status != common.StatusACTIVE {
			return false, nil
		}
	}
	return true, nil
}

// pollInterval is the pause between polling rounds, also used between
// activation attempts
func (wf *Workflow) pollInterval() time.Duration {
	if wf.PollInterval > 0 {
		return wf.PollInterval
	}
	return DefaultPollInterval
}

// readyStates returns the ACTIVE subset of states
func readyStates(states map[string]*common.AssetState) map[string]*common.AssetState {
	ready := map[string]*common.AssetState{}
	for id, state := range states {
		if state.Status == common.StatusACTIVE {
			ready[id] = state
		}
	}
	return ready
}

func (wf *Workflow) publishEvents(ctx context.Context, states map[string]*common.AssetState, report *common.Report) {
	if wf.Events == nil {
		return
	}
	var payloads [][]byte
	for _, state := range states {
		if state.Status == common.StatusACTIVE {
			// Reported through its download result
			continue
		}
		payloads = append(payloads, mustJSON(common.Result{
			Type:    common.ResultTypeScene,
			SceneID: state.SceneID,
			Status:  state.Status.String(),
			Message: state.Message,
		}))
	}
	for _, result := range report.Results {
		payloads = append(payloads, mustJSON(common.Result{
			Type:    common.ResultTypeScene,
			SceneID: result.SceneID,
			Status:  result.Outcome.String(),
			Message: result.Message,
		}))
	}
	payloads = append(payloads, mustJSON(common.Result{Type: common.ResultTypeReport, Report: report}))
	if err := wf.Events.Publish(ctx, payloads...); err != nil {
		log.Logger(ctx).Sugar().Warnf("publishEvents: %v", err)
	}
}
