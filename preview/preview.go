// Package preview inspects low-resolution scene previews to screen out
// corrupted or blank acquisitions before their full-resolution assets are
// requested.
package preview

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

// Band layout of the preview rasters
const (
	BandBlue = iota
	BandGreen
	BandRed
	BandNIR
	bandCount
)

// Corrupted previews show a saturated infrared band over an empty red band
const (
	corruptedNIRMean = 100
	corruptedRedMean = 10
)

var registerOnce sync.Once

// BandMeans computes the mean intensity of each band of the raster
func BandMeans(path string) ([]float64, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("BandMeans: %w", err)
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.SizeX <= 0 || structure.SizeY <= 0 {
		return nil, fmt.Errorf("BandMeans: empty raster %s", path)
	}
	means := make([]float64, 0, structure.NBands)
	buf := make([]float64, structure.SizeX*structure.SizeY)
	for _, band := range ds.Bands() {
		if err := band.Read(0, 0, buf, structure.SizeX, structure.SizeY); err != nil {
			return nil, fmt.Errorf("BandMeans.Read: %w", err)
		}
		sum := 0.0
		for _, v := range buf {
			sum += v
		}
		means = append(means, sum/float64(len(buf)))
	}
	return means, nil
}

// UsableScene reports whether the preview file at path depicts an
// exploitable scene
func UsableScene(path string) (bool, error) {
	means, err := BandMeans(path)
	if err != nil {
		return false, fmt.Errorf("UsableScene.%w", err)
	}
	return Usable(means), nil
}

// Usable reports whether a preview with the given band means depicts an
// exploitable scene. Previews with fewer than four bands cannot be evaluated
// and pass.
func Usable(means []float64) bool {
	if len(means) < bandCount {
		return true
	}
	return means[BandNIR] < corruptedNIRMean || means[BandRed] >= corruptedRedMean
}
