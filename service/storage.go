package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Extension of a stored scene artifact
type Extension string

// Supported extensions
const (
	NoExtension    Extension = "" // The artifact has no extension
	ExtensionGTiff Extension = "tif"
	ExtensionJSON  Extension = "json"
)

const thumbnailsSubdir = "thumbnails"

// ImageryDir returns the directory where full-resolution scenes of a project
// and date interval are stored: {root}/imagery/{project}/{start}_{end}
func ImageryDir(root, project string, start, end time.Time) string {
	interval := fmt.Sprintf("%s_%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	return filepath.Join(root, "imagery", project, interval)
}

// ThumbnailsDir returns the directory where scene previews of a project and
// date interval are stored, below the imagery directory
func ThumbnailsDir(root, project string, start, end time.Time) string {
	return filepath.Join(ImageryDir(root, project, start, end), thumbnailsSubdir)
}

// SceneFilePath returns the path of the artifact of the given scene in dir
func SceneFilePath(dir, sceneID string, ext Extension) string {
	return filepath.Join(dir, WithExt(sceneID, ext))
}

// EnsureDirs creates the directories (and missing parents) if needed
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("EnsureDirs.MkdirAll %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists returns whether the path exists as a regular file
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("FileExists.Stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// WithExt replaces the extension of filePath by ext
func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}
