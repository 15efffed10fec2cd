package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/interface/archive"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultDownloadWorkers = 4

// Downloader fetches the bytes of active assets to local storage
type Downloader struct {
	Planet *planet.Client

	// Archive optionally mirrors saved images to a remote storage
	Archive archive.Archive

	// Workers bounds the download pool (default 4)
	Workers int
}

// DownloadBatch downloads every asset of states, one result per asset.
// A failed download is recorded in its result and does not affect the others.
func (d *Downloader) DownloadBatch(ctx context.Context, states map[string]*common.AssetState, imageryDir string) []common.DownloadResult {
	workers := d.Workers
	if workers <= 0 {
		workers = defaultDownloadWorkers
	}

	wg, wctx := errgroup.WithContext(ctx)
	jobChan := make(chan *common.AssetState, len(states))
	resultChan := make(chan common.DownloadResult, len(states))
	for w := 0; w < workers; w++ {
		wg.Go(func() error {
			for state := range jobChan {
				select {
				case <-wctx.Done():
				default:
					resultChan <- d.ProcessScene(wctx, state, imageryDir)
				}
			}
			return nil
		})
	}
	for _, state := range states {
		jobChan <- state
	}
	close(jobChan)
	wg.Wait()
	close(resultChan)

	results := make([]common.DownloadResult, 0, len(states))
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}

// ProcessScene downloads the asset of one scene to {imageryDir}/{sceneID}.tif.
// If the file is already present the network is not touched. The bytes are
// staged in a scratch directory and renamed into place on success.
func (d *Downloader) ProcessScene(ctx context.Context, state *common.AssetState, imageryDir string) common.DownloadResult {
	result := common.DownloadResult{SceneID: state.SceneID}
	localPath := service.SceneFilePath(imageryDir, state.SceneID, service.ExtensionGTiff)

	exists, err := service.FileExists(localPath)
	if err != nil {
		result.Outcome = common.OutcomeFAILED
		result.Message = err.Error()
		return result
	}
	if exists {
		log.Logger(ctx).Sugar().Debugf("%s already downloaded", state.SceneID)
		result.Outcome = common.OutcomeEXISTS
		result.LocalPath = localPath
		return result
	}

	log.Logger(ctx).Sugar().Infof("downloading %s", state.SceneID)
	if err := d.downloadScene(ctx, state, localPath); err != nil {
		log.Logger(ctx).Sugar().Warnf("download %s: %v", state.SceneID, err)
		result.Outcome = common.OutcomeFAILED
		result.Message = err.Error()
		return result
	}
	result.Outcome = common.OutcomeSAVED
	result.LocalPath = localPath

	if d.Archive != nil {
		if err := d.Archive.Upload(ctx, localPath, filepath.Base(localPath)); err != nil {
			// Mirror failures do not fail the download
			log.Logger(ctx).Sugar().Warnf("mirror %s: %v", state.SceneID, err)
			result.Message = fmt.Sprintf("saved, mirror failed: %v", err)
		}
	}
	return result
}

// downloadScene resolves the byte-serving location of the asset and fetches it.
// The asset document is re-read: the location of the polling response may
// have expired by the time the download is scheduled.
func (d *Downloader) downloadScene(ctx context.Context, state *common.AssetState, localPath string) error {
	asset, err := d.Planet.Asset(ctx, state.AssetsURL, state.AssetType)
	if err != nil {
		return fmt.Errorf("downloadScene.%w", err)
	}
	location, err := d.Planet.DownloadLocation(ctx, asset)
	if err != nil {
		return fmt.Errorf("downloadScene.%w", err)
	}

	// Scratch dir on the same filesystem so the rename is atomic
	workdir := filepath.Join(filepath.Dir(localPath), uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	tmpPath := filepath.Join(workdir, filepath.Base(localPath))
	if err := d.fetch(ctx, location, tmpPath, state.SceneID); err != nil {
		return fmt.Errorf("downloadScene.%w", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return service.MakeTemporary(fmt.Errorf("downloadScene.Rename: %w", err))
	}
	return nil
}
