package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airbusgeo/planet-ingester/catalog/entities"
	"github.com/airbusgeo/planet-ingester/interface/archive"
	"github.com/airbusgeo/planet-ingester/interface/catalog/planet"
	"github.com/airbusgeo/planet-ingester/interface/messaging/pubsub"
	"github.com/airbusgeo/planet-ingester/service/log"
	"github.com/airbusgeo/planet-ingester/workflow"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type config struct {
	Request string

	APIKey   string
	Endpoint string

	DataDir      string
	ArchiveURI   string
	PsProject    string
	EventsTopic  string
	Workers      int
	PollInterval time.Duration
	Port         int
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Request, "request", "", "toml file describing the acquisition batch (one-shot mode). If empty, an HTTP server is started.")

	// Planet Data API connection
	flag.StringVar(&config.APIKey, "api-key", "", "planet api key (default: PL_API_KEY environment variable, or the api_key of the request file)")
	flag.StringVar(&config.Endpoint, "endpoint", "", "planet data api endpoint (default: "+planet.DefaultEndpoint+")")

	// Storage
	flag.StringVar(&config.DataDir, "data-dir", "data", "root directory of the local imagery storage")
	flag.StringVar(&config.ArchiveURI, "archive-uri", "", "bucket uri where saved images are mirrored (gs://bucket/prefix or s3://bucket/prefix) (optional)")

	// Messaging
	flag.StringVar(&config.PsProject, "ps-project", "", "pubsub topic project (optional, with events-topic)")
	flag.StringVar(&config.EventsTopic, "events-topic", "", "name of the pubsub topic for run events (optional)")

	flag.IntVar(&config.Workers, "workers", 4, "size of the download worker pool")
	flag.DurationVar(&config.PollInterval, "poll-interval", workflow.DefaultPollInterval, "pause between two activation polling rounds")
	flag.IntVar(&config.Port, "port", 8080, "port of the HTTP server (server mode)")
	flag.Parse()

	if config.APIKey == "" {
		config.APIKey = os.Getenv("PL_API_KEY")
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("missing data-dir config flag")
	}
	if config.EventsTopic != "" && config.PsProject == "" {
		return nil, fmt.Errorf("events-topic requires ps-project")
	}
	return &config, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	var area *entities.AreaToAcquire
	if config.Request != "" {
		if area, err = entities.LoadArea(config.Request); err != nil {
			return err
		}
		if config.APIKey == "" {
			config.APIKey = area.APIKey
		}
	}
	if config.APIKey == "" {
		return fmt.Errorf("missing planet api key (api-key flag, PL_API_KEY or request file)")
	}

	wf := workflow.NewWorkflow(&planet.Client{APIKey: config.APIKey, Endpoint: config.Endpoint}, config.DataDir, nil)
	wf.PollInterval = config.PollInterval
	wf.Downloader.Workers = config.Workers

	if config.ArchiveURI != "" {
		if wf.Downloader.Archive, err = archive.New(ctx, config.ArchiveURI); err != nil {
			return err
		}
		log.Logger(ctx).Sugar().Infof("mirroring images to %s", config.ArchiveURI)
	}

	if config.EventsTopic != "" {
		publisher, err := pubsub.NewPublisher(ctx, config.PsProject, config.EventsTopic)
		if err != nil {
			return fmt.Errorf("pubsub.NewPublisher: %w", err)
		}
		defer publisher.Stop()
		log.Logger(ctx).Sugar().Infof("pushing events on pubsub:%s/%s", config.PsProject, config.EventsTopic)
		wf.Events = publisher
	}

	// One-shot mode
	if area != nil {
		_, err := wf.Run(ctx, area)
		return err
	}

	// HTTP Server
	r := mux.NewRouter()
	wf.AddHandler(r)
	wf.Catalog.AddHandler(r, config.DataDir)

	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	s := http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(r),
	}

	go func() {
		log.Logger(ctx).Sugar().Infof("listening on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Fatal("ingester.ListenAndServe", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cncl := context.WithTimeout(context.Background(), 30*time.Second)
	defer cncl()
	return s.Shutdown(sctx)
}
