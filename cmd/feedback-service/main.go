package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

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
	"github.com/iye-ms/msec-feedback/pkg/sources/portal"
	"github.com/iye-ms/msec-feedback/pkg/sources/reddit"
	"github.com/iye-ms/msec-feedback/pkg/sources/twitter"
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
	tracker := analytics.NewTracker(lifecycleRepo)

	producer := kafka.NewProducer(cfg.KafkaRunTopic)
	defer producer.Close()

	llm := classifier.NewClient(cfg)
	svc := feedback.NewService(repo, llm, producer)
	generator := report.NewGenerator(repo, reportRepo, llm, tracker)

	// Fresh data triggers a same-day report refresh; a quiet window is not
	// an error here.
	onNewData := func(ctx context.Context, product models.Product) {
		if _, err := generator.Generate(ctx, product); err != nil && err != report.ErrNoData {
			logger.Log.WithError(err).WithField("product", product).Error("report refresh failed")
		}
	}

	redditAdapter := reddit.NewAdapter(cfg, cat)
	msqaAdapter := msqa.NewAdapter(cfg, cat)
	portalAdapter := portal.NewAdapter(cfg, cat)
	twitterAdapter := twitter.NewAdapter(cfg)

	handler := feedback.NewHTTPHandler(feedback.HandlerDeps{
		Service:    svc,
		Repo:       repo,
		Reddit:     redditAdapter,
		MSQA:       msqaAdapter,
		Portal:     portalAdapter,
		Twitter:    twitterAdapter,
		Comments:   llm,
		WindowDays: cfg.RecencyWindowDays,
		OnNewData:  onNewData,
	})
	reportHandler := report.NewHTTPHandler(generator, reportRepo, repo, lifecycleRepo, tracker)

	runners := []scheduler.IngestRunner{
		&feedback.Runner{
			Source:      models.SourceReddit,
			Fetcher:     redditAdapter,
			Service:     svc,
			WindowDays:  cfg.RecencyWindowDays,
			DefaultType: models.TypeQuestion,
			Classify:    true,
			OnNewData:   onNewData,
		},
		&feedback.Runner{
			Source:      models.SourceTechCommunity,
			Fetcher:     msqaAdapter,
			Service:     svc,
			WindowDays:  cfg.RecencyWindowDays,
			DefaultType: models.TypeQuestion,
			Classify:    true,
			OnNewData:   onNewData,
		},
	}
	orchestrator := scheduler.NewOrchestrator(runners, repo, cfg.AdapterDelay, cfg.ProductDelay, cfg.IngestionCooldown)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)
	reportHandler.Register(api)
	orchestrator.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Feedback Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Feedback Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Feedback Service stopped")
}
