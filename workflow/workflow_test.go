package workflow_test

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/common"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/workflow"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func candidate(server, id string) *common.Scene {
	date, err := common.AcquisitionDate(id)
	Expect(err).NotTo(HaveOccurred())
	return &common.Scene{
		SourceID: id,
		Date:     date,
		Links: common.SceneLinks{
			Assets:    server + "/assets/" + id,
			Thumbnail: server + "/thumb/" + id,
		},
	}
}

var _ = Describe("Workflow", func() {
	var api *fakeDataAPI
	var wf *workflow.Workflow
	var dataDir string
	ctx := context.Background()

	newWorkflow := func(scenes ...fakeScene) {
		api = newFakeDataAPI(scenes)
		wf = workflow.NewWorkflow(&planet.Client{APIKey: "test-key", Endpoint: api.url()}, dataDir, nil)
		wf.PollInterval = time.Millisecond
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "ingester_test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		api.close()
		os.RemoveAll(dataDir)
	})

	Describe("activating assets", func() {
		It("classifies a scene without the requested asset type as unsupported", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054"})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			Expect(states).To(HaveLen(1))
			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusUNSUPPORTED))
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(0))

			// An unsupported scene is never polled
			fullyReady, err := wf.PollReadiness(ctx, states)
			Expect(err).NotTo(HaveOccurred())
			Expect(fullyReady).To(BeTrue())
			Expect(api.queries("20200601_093245_1054")).To(Equal(1))
		})

		It("classifies an already active asset without issuing an activation call", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"active"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVE))
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(0))
		})

		It("requests the activation of an inactive asset", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "activating"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVATING))
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(1))
		})

		It("keeps an asset already being activated pending, without a new activation request", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"activating", "active"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVATING))
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(0))

			// An in-flight activation resolves through polling
			fullyReady, err := wf.PollReadiness(ctx, states)
			Expect(err).NotTo(HaveOccurred())
			Expect(fullyReady).To(BeTrue())
			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVE))
		})

		It("marks a scene failed when every activation attempt is refused", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive"}, failActivation: true})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			state := states["20200601_093245_1054"]
			Expect(state.Status).To(Equal(common.StatusFAILED))
			Expect(state.Message).NotTo(BeEmpty())
			// The activation link is only carried while the asset is inactive
			Expect(state.ActivationURL).To(BeEmpty())
			// Refusals are retried before giving up
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(3))
		})

		It("drops a scene with a status the workflow does not understand", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"glitched"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")

			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusUNSUPPORTED))
			Expect(api.activationCalls("20200601_093245_1054")).To(Equal(0))
		})
	})

	Describe("polling readiness", func() {
		It("stops as soon as every pending asset is ready", func() {
			newWorkflow(
				fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "active"}},
				fakeScene{id: "20200602_093245_1054", assetStatuses: []string{"inactive", "active"}},
				fakeScene{id: "20200603_093245_1054", assetStatuses: []string{"inactive", "activating", "active"}},
			)
			scenes := []*common.Scene{
				candidate(api.url(), "20200601_093245_1054"),
				candidate(api.url(), "20200602_093245_1054"),
				candidate(api.url(), "20200603_093245_1054"),
			}

			states := wf.ActivateAssets(ctx, scenes, "analytic")
			fullyReady, err := wf.PollReadiness(ctx, states)

			Expect(err).NotTo(HaveOccurred())
			Expect(fullyReady).To(BeTrue())
			for _, state := range states {
				Expect(state.Status).To(Equal(common.StatusACTIVE))
			}
			// Two rounds: resolved assets are not re-queried, and no round
			// runs once the pending set is empty
			Expect(api.queries("20200601_093245_1054")).To(Equal(2))
			Expect(api.queries("20200602_093245_1054")).To(Equal(2))
			Expect(api.queries("20200603_093245_1054")).To(Equal(3))
		})

		It("exhausts the budget on an asset that never resolves, without error", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "activating"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")
			queriesBefore := api.queries("20200601_093245_1054")
			fullyReady, err := wf.PollReadiness(ctx, states)

			Expect(err).NotTo(HaveOccurred())
			Expect(fullyReady).To(BeFalse())
			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVATING))
			Expect(api.queries("20200601_093245_1054") - queriesBefore).To(Equal(workflow.MaxPollRounds))
		})

		It("marks a failed activation permanently, without aborting the run", func() {
			newWorkflow(
				fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "failed"}},
				fakeScene{id: "20200602_093245_1054", assetStatuses: []string{"inactive", "active"}},
			)
			scenes := []*common.Scene{
				candidate(api.url(), "20200601_093245_1054"),
				candidate(api.url(), "20200602_093245_1054"),
			}

			states := wf.ActivateAssets(ctx, scenes, "analytic")
			fullyReady, err := wf.PollReadiness(ctx, states)

			Expect(err).NotTo(HaveOccurred())
			Expect(fullyReady).To(BeFalse())
			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusFAILED))
			Expect(states["20200602_093245_1054"].Status).To(Equal(common.StatusACTIVE))
		})

		It("aborts cleanly between rounds when the context is cancelled", func() {
			newWorkflow(fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "activating"}})
			scenes := []*common.Scene{candidate(api.url(), "20200601_093245_1054")}

			states := wf.ActivateAssets(ctx, scenes, "analytic")
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := wf.PollReadiness(cctx, states)

			Expect(err).To(HaveOccurred())
			// Partial state is valid: the asset is still activating
			Expect(states["20200601_093245_1054"].Status).To(Equal(common.StatusACTIVATING))
		})
	})

	Describe("running a batch end to end", func() {
		// 4 scenes across 2 dates: the first scene of date 1 fails the
		// quality screening, the selected scene of date 2 is already active
		// and the last scene of date 2 is shadowed by the selection.
		newBatch := func() {
			newWorkflow(
				fakeScene{id: "20200601_093245_1054", assetStatuses: []string{"inactive", "active"}},
				fakeScene{id: "20200601_101533_0f22", assetStatuses: []string{"inactive", "active"}},
				fakeScene{id: "20200603_093251_1054", assetStatuses: []string{"active"}},
				fakeScene{id: "20200603_110214_1005", assetStatuses: []string{"active"}},
			)
			wf.Catalog.Screen = func(path string) (bool, error) {
				thumb, err := os.ReadFile(path)
				if err != nil {
					return false, err
				}
				return string(thumb) != "thumb:20200601_093245_1054", nil
			}
		}
		area := &entities.AreaToAcquire{
			Project:   "borneo",
			ItemType:  "PSScene4Band",
			AssetType: "analytic",
			StartDate: "2020-06-01",
			EndDate:   "2020-06-30",
			MaxCloud:  0.1,
			AOI: &geojson.Geometry{Geometry: geom.Polygon{
				{{115, -2}, {116, -2}, {116, -1}, {115, -1}, {115, -2}},
			}},
		}

		It("downloads one scene per date, skipping the quality reject", func() {
			newBatch()
			events := MokePublisher{}
			wf.Events = &events

			report, err := wf.Run(ctx, area)
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Candidates).To(Equal(2))
			Expect(report.Unsupported).To(Equal(0))
			Expect(report.FailedActivations).To(Equal(0))
			Expect(report.Ready).To(Equal(2))
			Expect(report.FullyReady).To(BeTrue())
			Expect(report.Saved).To(Equal(2))
			Expect(report.FailedDownloads).To(Equal(0))

			Expect(report.Results).To(HaveLen(2))
			Expect(report.Results[0].SceneID).To(Equal("20200601_101533_0f22"))
			Expect(report.Results[1].SceneID).To(Equal("20200603_093251_1054"))
			for _, result := range report.Results {
				Expect(result.Outcome).To(Equal(common.OutcomeSAVED))
				Expect(result.LocalPath).To(BeAnExistingFile())
			}

			// The already active scene was not re-activated, the shadowed
			// scene of date 2 was never looked at
			Expect(api.activationCalls("20200601_101533_0f22")).To(Equal(1))
			Expect(api.activationCalls("20200603_093251_1054")).To(Equal(0))
			Expect(api.queries("20200603_110214_1005")).To(Equal(0))

			// One event per downloaded scene plus the final report
			Expect(events.messages).To(HaveLen(3))
			last := common.Result{}
			Expect(json.Unmarshal(events.messages[2], &last)).To(Succeed())
			Expect(last.Type).To(Equal(common.ResultTypeReport))
			Expect(last.Report.Saved).To(Equal(2))
		})

		It("skips the network on a re-run: the batch is idempotent", func() {
			newBatch()
			_, err := wf.Run(ctx, area)
			Expect(err).NotTo(HaveOccurred())

			report, err := wf.Run(ctx, area)
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Saved).To(Equal(0))
			Expect(report.AlreadyPresent).To(Equal(2))
			Expect(api.fetches("20200601_101533_0f22")).To(Equal(1))
			Expect(api.fetches("20200603_093251_1054")).To(Equal(1))
		})

		It("fails the run when no scene survives the selection", func() {
			newBatch()
			wf.Catalog.Screen = func(string) (bool, error) { return false, nil }

			_, err := wf.Run(ctx, area)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no candidate scene left"))
		})
	})
})
