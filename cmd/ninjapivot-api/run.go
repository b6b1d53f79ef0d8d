package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spaghetti-software-inc/ninjapivot/internal/analysis/tabular"
	apiserver "github.com/spaghetti-software-inc/ninjapivot/internal/api_server"
	"github.com/spaghetti-software-inc/ninjapivot/internal/artifacts"
	"github.com/spaghetti-software-inc/ninjapivot/internal/config"
	"github.com/spaghetti-software-inc/ninjapivot/internal/events"
	handlers "github.com/spaghetti-software-inc/ninjapivot/internal/handlers/v1alpha1"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
	"github.com/spaghetti-software-inc/ninjapivot/internal/runner"
	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store"
	"github.com/spaghetti-software-inc/ninjapivot/pkg/log"
)

var runOptions = DefaultRunOptions()

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the report api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		runOptions.Apply(cfg)

		logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		archive := store.NewStore(db)
		defer archive.Close()

		if err := archive.InitialMigration(); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}

		artifactStore, err := newArtifactStore(cfg)
		if err != nil {
			return fmt.Errorf("initializing artifact store: %w", err)
		}

		writer, err := newEventWriter(cfg)
		if err != nil {
			return fmt.Errorf("initializing event writer: %w", err)
		}
		producer := events.NewEventProducer(writer, events.WithOutputTopic(cfg.Events.KafkaTopic))
		defer producer.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		reg := registry.New()
		reg.StartEviction(ctx, cfg.Jobs.Retention, cfg.Jobs.EvictionInterval)

		engine := tabular.NewEngine(cfg.Limits.MaxRows, cfg.Limits.MaxColumns)
		jobRunner := runner.New(reg, engine, artifactStore, archive, producer, cfg.Jobs.Timeout)

		srv := service.NewReportService(reg, jobRunner, artifactStore, archive, producer, cfg.Limits.MaxUploadBytes)
		handler := handlers.NewServiceHandler(srv, cfg.Limits.MaxUploadBytes, cfg.Jobs.HeartbeatInterval)

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return fmt.Errorf("creating listener: %w", err)
			}
			return apiserver.New(cfg, handler, listener).Run(ctx)
		})

		g.Go(func() error {
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return fmt.Errorf("creating metrics listener: %w", err)
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener).Run(ctx)
		})

		return g.Wait()
	},
}

func init() {
	runOptions.Bind(runCmd.Flags())
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}

func newArtifactStore(cfg *config.Config) (artifacts.Store, error) {
	if cfg.Artifacts.Backend == "s3" {
		return artifacts.NewMinioStore(
			artifacts.WithEndpoint(cfg.Artifacts.S3Endpoint),
			artifacts.WithBucket(cfg.Artifacts.S3Bucket),
			artifacts.WithCredentials(cfg.Artifacts.S3AccessKey, cfg.Artifacts.S3SecretKey),
			artifacts.WithSSL(cfg.Artifacts.S3UseSSL),
		)
	}
	return artifacts.NewFilesystemStore(cfg.Artifacts.Directory)
}

func newEventWriter(cfg *config.Config) (events.Writer, error) {
	if cfg.Events.Writer == "kafka" {
		return events.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.ClientID, cfg.Events.KafkaVersion)
	}
	return &events.StdoutWriter{}, nil
}
