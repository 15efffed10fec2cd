package common

import (
	"fmt"
	"time"
)

// Scene identifiers start with the acquisition date:
// YYYYMMDD_HHMMSS_SSSS (e.g. 20200601_093245_1054)
const sceneIDDateLayout = "20060102"

// AcquisitionDate returns the acquisition date encoded in the scene identifier prefix
func AcquisitionDate(sceneID string) (time.Time, error) {
	if len(sceneID) < len(sceneIDDateLayout) {
		return time.Time{}, fmt.Errorf("invalid scene identifier: %s", sceneID)
	}
	date, err := time.Parse(sceneIDDateLayout, sceneID[0:len(sceneIDDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid scene identifier %s: %w", sceneID, err)
	}
	return date, nil
}
