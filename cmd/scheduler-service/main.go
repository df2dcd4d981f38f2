package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/iye-ms/msec-feedback/pkg/analytics"
	"github.com/iye-ms/msec-feedback/pkg/catalog"
	"github.com/iye-ms/msec-feedback/pkg/classifier"
	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/database"
	"github.com/iye-ms/msec-feedback/pkg/common/kafka"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/feedback"
	"github.com/iye-ms/msec-feedback/pkg/report"
	"github.com/iye-ms/msec-feedback/pkg/scheduler"
	"github.com/iye-ms/msec-feedback/pkg/sources/msqa"
	"github.com/iye-ms/msec-feedback/pkg/sources/reddit"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.CatalogPath).Warn("catalog load failed, using built-in defaults")
	}

	repo := feedback.NewRepository(db, database.GetRedis(), cfg.DedupCacheTTL)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate feedback tables")
	}

	reportRepo := report.NewRepository(db)
	if err := reportRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate report tables")
	}

	lifecycleRepo, err := analytics.NewLifecycleRepository(db)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate issue lifecycle tables")
	}

	producer := kafka.NewProducer(cfg.KafkaRunTopic)
	defer producer.Close()

	llm := classifier.NewClient(cfg)
	svc := feedback.NewService(repo, llm, producer)
	generator := report.NewGenerator(repo, reportRepo, llm, analytics.NewTracker(lifecycleRepo))

	onNewData := func(ctx context.Context, product models.Product) {
		if _, err := generator.Generate(ctx, product); err != nil && err != report.ErrNoData {
			logger.Log.WithError(err).WithField("product", product).Error("report refresh failed")
		}
	}

	runners := []scheduler.IngestRunner{
		&feedback.Runner{
			Source:      models.SourceReddit,
			Fetcher:     reddit.NewAdapter(cfg, cat),
			Service:     svc,
			WindowDays:  cfg.RecencyWindowDays,
			DefaultType: models.TypeQuestion,
			Classify:    true,
			OnNewData:   onNewData,
		},
		&feedback.Runner{
			Source:      models.SourceTechCommunity,
			Fetcher:     msqa.NewAdapter(cfg, cat),
			Service:     svc,
			WindowDays:  cfg.RecencyWindowDays,
			DefaultType: models.TypeQuestion,
			Classify:    true,
			OnNewData:   onNewData,
		},
	}
	orchestrator := scheduler.NewOrchestrator(runners, repo, cfg.AdapterDelay, cfg.ProductDelay, cfg.IngestionCooldown)

	c := cron.New()
	if _, err := c.AddFunc(cfg.SchedulerCron, func() {
		orchestrator.RunAll(context.Background())
	}); err != nil {
		logger.Log.WithError(err).WithField("spec", cfg.SchedulerCron).Fatal("invalid scheduler cron spec")
	}

	c.Start()
	logger.Log.WithField("spec", cfg.SchedulerCron).Info("Scheduler Service started")

	// Kick off one pass immediately so a fresh deployment does not wait a
	// full cron interval for data.
	go orchestrator.RunAll(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Scheduler Service...")
	<-c.Stop().Done()
	logger.Log.Info("Scheduler Service stopped")
}
