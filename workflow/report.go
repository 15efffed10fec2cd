package workflow

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/service/log"
)

func newReport(project string, scenes []*common.Scene, states map[string]*common.AssetState, fullyReady bool, results []common.DownloadResult) *common.Report {
	report := &common.Report{
		Project:    project,
		Candidates: len(scenes),
		FullyReady: fullyReady,
		Results:    results,
	}
	for _, state := range states {
		switch state.Status {
		case common.StatusUNSUPPORTED:
			report.Unsupported++
		case common.StatusFAILED:
			report.FailedActivations++
		case common.StatusACTIVE:
			report.Ready++
		case common.StatusACTIVATING:
			report.Pending++
		}
	}
	for _, result := range results {
		switch result.Outcome {
		case common.OutcomeSAVED:
			report.Saved++
		case common.OutcomeEXISTS:
			report.AlreadyPresent++
		case common.OutcomeFAILED:
			report.FailedDownloads++
		}
	}
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].SceneID < report.Results[j].SceneID })
	return report
}

func logReport(ctx context.Context, r *common.Report) {
	lg := log.Logger(ctx).Sugar()
	lg.Infof("%s: %d candidate scenes: %d unsupported, %d failed to activate, %d ready (fully ready: %v)",
		r.Project, r.Candidates, r.Unsupported, r.FailedActivations, r.Ready, r.FullyReady)
	lg.Infof("%s: %d downloaded, %d already present, %d failed", r.Project, r.Saved, r.AlreadyPresent, r.FailedDownloads)
	for _, result := range r.Results {
		if result.Outcome == common.OutcomeFAILED {
			lg.Warnf("%s: %s", result.SceneID, result.Message)
		}
	}
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
