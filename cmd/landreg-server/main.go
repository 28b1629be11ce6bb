// Package main runs the land registry detection server: the HTTP API, the
// background job workers and the migrations they depend on.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/api"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/cache"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/config"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/extract"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/ha"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/resolution"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

func main() {
	var (
		configPath   string
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&configPath, "config", "/config/landreg.yaml", "Path to server config file")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&databaseType, "db-type", "", "Database type: postgres, mysql or sqlite (overrides config)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string (overrides config)")
	flag.Parse()

	// glog is only used for fatal startup errors.
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if databaseType != "" {
		cfg.Database.Type = databaseType
	}
	if databaseDSN != "" {
		cfg.Database.DSN = databaseDSN
	}
	if err := cfg.Validate(); err != nil {
		glog.Fatalf("Invalid configuration: %v", err)
	}

	logger.Info("starting land registry server",
		"listen", cfg.Listen,
		"database", cfg.Database.Type,
		"authz", cfg.AuthzMode,
		"detectors", cfg.Detection.Detectors,
		"ocr", cfg.Extract.OCREnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(cfg.Database)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	store := registry.NewStore(gormDB)
	auditStore := audit.NewStore(gormDB)
	modelStore := similarity.NewGormModelStore(gormDB)
	jobStore := jobs.NewJobStore(gormDB)

	migrationLocker := ha.NewMigrationLocker(gormDB, &cfg.HA)
	err = migrationLocker.WithLock(ctx, func() error {
		steps := []struct {
			name    string
			migrate func() error
		}{
			{"registry", store.AutoMigrate},
			{"audit", auditStore.AutoMigrate},
			{"similarity", modelStore.AutoMigrate},
			{"jobs", jobStore.AutoMigrate},
		}
		for _, step := range steps {
			if err := step.migrate(); err != nil {
				return fmt.Errorf("migrate %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	var ocr extract.OCR = extract.NopOCR{}
	if cfg.Extract.OCREnabled {
		vision, err := extract.NewVisionOCR(ctx)
		if err != nil {
			glog.Fatalf("Failed to create Cloud Vision client: %v", err)
		}
		defer vision.Close()
		ocr = vision
	}
	extractor := extract.NewFileExtractor(&cfg.Extract, ocr, cache.New(&cfg.Cache), logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := detection.NewMetrics(reg)
	if err != nil {
		glog.Fatalf("Failed to register metrics: %v", err)
	}

	locker := ha.NewLocker(gormDB, &cfg.HA, ha.WithLogger(logger))
	recorder := audit.NewRecorder(auditStore, logger)

	engine := detection.NewEngine(store, detection.Options{
		Config:    &cfg.Detection,
		Extractor: extractor,
		Models:    modelStore,
		Locker:    locker,
		Recorder:  recorder,
		Metrics:   metrics,
		Logger:    logger,
	})
	resolver := resolution.NewService(store, locker, recorder, logger)

	server := api.NewServer(store, engine,
		api.WithResolver(resolver),
		api.WithJobStore(jobStore),
		api.WithAudit(auditStore, &cfg.Audit),
		api.WithModelStore(modelStore),
		api.WithAuthorizer(authz.New(cfg.AuthzMode)),
		api.WithGatherer(reg),
		api.WithLogger(logger),
	)
	router := server.MountRoutes()

	pool := jobs.NewWorkerPool(jobStore, jobs.NewDetectionExecutor(engine), &cfg.Jobs, logger)
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	server.SetReady(true)
	logger.Info("land registry server ready", "listen", cfg.Listen)

	<-ctx.Done()

	logger.Info("shutting down...")
	server.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Warn("job workers did not stop before the shutdown deadline")
	}

	logger.Info("land registry server stopped")
}

func setupDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required (use -db-dsn flag, database.dsn or LANDREG_DATABASE_DSN)")
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case config.DatabasePostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DatabaseMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DatabaseSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Type == config.DatabaseSQLite {
		// SQLite allows one writer at a time.
		sqlDB.SetMaxOpenConns(1)
	}
	return gormDB, nil
}
