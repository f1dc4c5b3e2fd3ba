package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/courseloom/course_downloader/internal/catalog"
	"github.com/courseloom/course_downloader/internal/cleanup"
	"github.com/courseloom/course_downloader/internal/config"
	"github.com/courseloom/course_downloader/internal/downloader"
	"github.com/courseloom/course_downloader/internal/http/rest"
	"github.com/courseloom/course_downloader/internal/lms"
	"github.com/courseloom/course_downloader/internal/logctx"
	"github.com/courseloom/course_downloader/internal/notifier"
	"github.com/courseloom/course_downloader/internal/storage/sqlite"
	"github.com/courseloom/course_downloader/internal/strategy"
	"github.com/courseloom/course_downloader/internal/svc/downloads"
	"github.com/courseloom/course_downloader/internal/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
)

const serviceName = "course_downloader"

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("course downloader starting...", "version", version, "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("DB error: %w", err)
	}
	defer database.Close()

	courseRepo := sqlite.NewCourseRepository(database)
	moduleRepo := sqlite.NewInstrumentedModuleRepository(database, tel)

	// =========================================================================
	// Start Download Manager
	manager, err := downloader.NewManagerBuilder(downloader.Config{
		DownloadDir:   cfg.DownloadDir,
		MaxConcurrent: cfg.MaxParallel,
		MaxRetries:    uint(cfg.MaxRetries),
		FetchTimeout:  cfg.FetchTimeout,
	}).
		WithStorage(moduleRepo).
		WithModuleSource(moduleRepo).
		WithStrategy(catalog.TypeDocument, strategy.Document{}).
		WithStrategy(catalog.TypeVideo, strategy.Media{}).
		WithStrategy(catalog.TypeAudio, strategy.Media{}).
		WithStrategy(catalog.TypeYouTube, strategy.YouTube{StubDir: filepath.Join(cfg.DownloadDir, ".stubs")}).
		WithStrategy(catalog.TypeSCORM, strategy.SCORM{}).
		WithTelemetry(tel).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build download manager: %w", err)
	}

	manager.Start(ctx)
	defer manager.Close()

	if err := manager.Recover(ctx); err != nil {
		logger.Error("failed to recover interrupted downloads", "err", err)
	}

	// =========================================================================
	// Start Notification
	setupNotificationForManager(ctx, manager, cfg)

	// =========================================================================
	// Start Scheduled Jobs
	catalogClient := lms.NewInstrumentedCatalogClient(
		lms.NewClient(ctx, cfg.LMS.BaseURL, cfg.LMS.Token), tel,
	)
	syncer := lms.NewSyncer(catalogClient, courseRepo, moduleRepo, tel)
	cleaner := cleanup.NewCleaner(moduleRepo, cfg.KeepDownloadedFor)

	scheduler, err := setupScheduler(ctx, cfg, syncer, cleaner)
	if err != nil {
		return fmt.Errorf("failed to setup scheduler: %w", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	svc := downloads.New(manager, courseRepo, moduleRepo, cfg.MaxParallel)
	server := setupServer(ctx, cfg, svc, courseRepo, moduleRepo, syncer, tel)

	go func() {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("waiting for downloads...",
		"download_dir", cfg.DownloadDir,
		"max_parallel", cfg.MaxParallel,
		"retention", cfg.KeepDownloadedFor.String(),
	)

	// =========================================================================
	// Start Main Loop
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	}
}

func setupNotificationForManager(ctx context.Context, manager *downloader.Manager, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	var notif notifier.Notifier = notifier.NopNotifier{}
	if cfg.WebhookURL != "" {
		notif = notifier.NewWebhookNotifier(cfg.WebhookURL)
	}

	go func() {
		for event := range manager.OnFailed {
			logger.Error("module download failed", "module_id", event.Item.ID, "title", event.Item.Title, "err", event.Err)

			if notifyErr := notif.Notify(ctx,
				"❌ Download failed for module: "+event.Item.Title+" ("+event.Err.Error()+")",
			); notifyErr != nil {
				logger.Error("failed to send notification", "err", notifyErr)
			}
		}
	}()

	go func() {
		for event := range manager.OnFinished {
			logger.Info("module download finished",
				"module_id", event.ID,
				"title", event.Title,
				"size", humanize.Bytes(uint64(event.FileSize)),
			)

			if notifyErr := notif.Notify(ctx,
				"✅ Download finished for module: "+event.Title+" ("+humanize.Bytes(uint64(event.FileSize))+")",
			); notifyErr != nil {
				logger.Error("failed to send notification", "module_id", event.ID, "err", notifyErr)
			}
		}
	}()
}

func setupScheduler(ctx context.Context, cfg *config.Config, syncer *lms.Syncer, cleaner *cleanup.Cleaner) (*cron.Cron, error) {
	logger := logctx.LoggerFromContext(ctx)
	cronLog := cronLogger{logger: logger}

	scheduler := cron.New(cron.WithChain(cron.Recover(cronLog)))

	if cfg.LMS.BaseURL != "" {
		if _, err := scheduler.AddFunc(cfg.LMS.SyncSchedule, func() { syncer.Run(ctx) }); err != nil {
			return nil, fmt.Errorf("invalid sync schedule: %w", err)
		}
	} else {
		logger.Warn("no LMS base url configured, catalog sync disabled")
	}

	if _, err := scheduler.AddFunc(cfg.CleanupSchedule, func() { cleaner.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule: %w", err)
	}

	return scheduler, nil
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	cfg *config.Config,
	svc *downloads.Service,
	courseRepo *sqlite.CourseRepository,
	moduleRepo *sqlite.InstrumentedModuleRepository,
	syncer *lms.Syncer,
	tel *telemetry.Telemetry,
) *http.Server {
	handler := rest.NewHandler(cfg.API.Username, cfg.API.Password, svc, courseRepo, moduleRepo, syncer)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)

	r.Handle("/metrics", tel.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
