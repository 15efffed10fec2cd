package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/preview"
	"github.com/airbusgeo/planet-ingester/service"
	"github.com/airbusgeo/planet-ingester/service/log"
	"golang.org/x/sync/errgroup"
)

const defaultThumbnailWorkers = 10

// sceneThumbnail fetches the preview of the scene into thumbsDir, skipping
// the fetch when the file is already cached. It returns the local path.
func (c *Catalog) sceneThumbnail(ctx context.Context, scene *common.Scene, thumbsDir string) (string, error) {
	thumbPath := service.SceneFilePath(thumbsDir, scene.SourceID, service.ExtensionGTiff)
	exists, err := service.FileExists(thumbPath)
	if err != nil {
		return "", fmt.Errorf("sceneThumbnail.%w", err)
	}
	if exists {
		return thumbPath, nil
	}

	log.Logger(ctx).Debug("Fetch thumbnail of " + scene.SourceID)
	thumb, err := c.Planet.Thumbnail(ctx, scene.Links.Thumbnail)
	if err != nil {
		return "", fmt.Errorf("sceneThumbnail.%w", err)
	}
	if err := os.WriteFile(thumbPath, thumb, 0644); err != nil {
		return "", fmt.Errorf("sceneThumbnail.WriteFile: %w", err)
	}
	return thumbPath, nil
}

// selectDateScene walks the scenes of one acquisition date in catalog order
// and returns the first one with a usable preview, or nil if every preview
// of the day shows the corrupted-acquisition signature.
func (c *Catalog) selectDateScene(ctx context.Context, scenes []*common.Scene, thumbsDir string) (*common.Scene, error) {
	screen := c.Screen
	if screen == nil {
		screen = preview.UsableScene
	}
	for _, scene := range scenes {
		thumbPath, err := c.sceneThumbnail(ctx, scene, thumbsDir)
		if err != nil {
			return nil, err
		}
		usable, err := screen(thumbPath)
		if err != nil {
			return nil, fmt.Errorf("selectDateScene[%s].%w", scene.SourceID, err)
		}
		if usable {
			return scene, nil
		}
		log.Logger(ctx).Sugar().Infof("drop %s: corrupted preview", scene.SourceID)
	}
	return nil, nil
}

func (c *Catalog) selectWorker(ctx context.Context, jobs <-chan int, groups [][]*common.Scene, selected []*common.Scene, thumbsDir string) error {
	for i := range jobs {
		select {
		case <-ctx.Done():
		default:
			scene, err := c.selectDateScene(ctx, groups[i], thumbsDir)
			if err != nil {
				return err
			}
			selected[i] = scene
		}
	}
	return nil
}

// selectScenes retains one scene per acquisition date: the first scene of
// each date group whose preview is usable. Date groups are screened on a
// bounded worker pool; thumbnails are cached in thumbsDir.
func (c *Catalog) selectScenes(ctx context.Context, groups [][]*common.Scene, thumbsDir string) ([]*common.Scene, error) {
	workers := c.Workers
	if workers <= 0 {
		workers = defaultThumbnailWorkers
	}

	// One slot per date group: workers never write to the same index
	selected := make([]*common.Scene, len(groups))
	wg, wctx := errgroup.WithContext(ctx)
	jobChan := make(chan int, len(groups))
	for w := 0; w < workers; w++ {
		wg.Go(func() error { return c.selectWorker(wctx, jobChan, groups, selected, thumbsDir) })
	}
	for i := range groups {
		jobChan <- i
	}
	close(jobChan)
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("selectScenes.%w", err)
	}

	scenes := make([]*common.Scene, 0, len(groups))
	for _, scene := range selected {
		if scene != nil {
			scenes = append(scenes, scene)
		}
	}
	return scenes, nil
}
