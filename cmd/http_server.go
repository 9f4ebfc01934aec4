package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/access"
	"github.com/pulsemetrics/analytics-gateway/internal/analytics"
	"github.com/pulsemetrics/analytics-gateway/internal/audit"
	auditpg "github.com/pulsemetrics/analytics-gateway/internal/audit/postgres"
	"github.com/pulsemetrics/analytics-gateway/internal/cache"
	"github.com/pulsemetrics/analytics-gateway/internal/core/events"
	"github.com/pulsemetrics/analytics-gateway/internal/directory"
	directorypg "github.com/pulsemetrics/analytics-gateway/internal/directory/postgres"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/internal/obs"
	"github.com/pulsemetrics/analytics-gateway/internal/transport/openapi"
	"github.com/pulsemetrics/analytics-gateway/internal/transport/rest"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
	"github.com/pulsemetrics/analytics-gateway/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle gateway API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DirectoryDB *gorm.DB
	WarehouseDB *sqlx.DB
	Router      *chi.Mux
	Cache       *cache.ResultCache
	Bus         *events.EventBus
	Logger      *slog.Logger

	stopSweeper context.CancelFunc
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.stopSweeper()
		if sqlDB, err := deps.DirectoryDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				deps.Logger.Error("Directory database close error", "error", err)
			}
		}
		if err := deps.WarehouseDB.Close(); err != nil {
			deps.Logger.Error("Warehouse database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	if config.Observability.Metrics.Enabled {
		obs.Init()
	}

	directoryDB, err := initDirectoryDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize directory database: %w", err)
	}

	warehouseDB, err := initWarehouseDB(config.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize warehouse database: %w", err)
	}

	// Directory stores back both the access resolver and the admin surface.
	directoryRepo := directorypg.NewDirectoryRepository(directoryDB)
	resolver := access.NewResolver(directoryRepo, directoryRepo, directoryRepo, appLogger)
	directoryService := directory.NewService(directoryRepo, appLogger)
	directoryHandler := directory.NewHandler(directoryService)

	// Audit records flow through the event bus into the append-only store.
	bus := events.NewEventBus(appLogger)
	auditStore := auditpg.NewAuditStore(directoryDB)
	audit.NewSubscriber(auditStore, appLogger).Register(bus)
	sink := audit.NewBusSink(bus)

	resultCache := cache.New(config.Cache.Capacity, appLogger)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	if config.Cache.SweepInterval > 0 {
		resultCache.StartSweeper(sweepCtx, config.Cache.SweepInterval)
	}

	warehouseClient := warehouse.NewClient(warehouseDB, config.Warehouse.QueryTimeout, appLogger)
	planner := analytics.NewPlanner()
	gatewayService := analytics.NewService(resolver, planner, resultCache, warehouseClient, sink, config.Cache.TTL, appLogger)
	analyticsHandler := analytics.NewHandler(gatewayService)

	verifier := identity.NewVerifier(config.Security.IdentityTokenSecret)

	var requestValidator func(http.Handler) http.Handler
	if validator, err := openapi.NewValidator("./api/openapi.yml"); err != nil {
		appLogger.Warn("openapi document unavailable, request validation disabled", "error", err)
	} else {
		requestValidator = validator.Middleware
	}

	router := chi.NewRouter()
	sqlDB, err := directoryDB.DB()
	if err != nil {
		stopSweeper()
		return nil, fmt.Errorf("failed to unwrap directory database: %w", err)
	}

	rest.RegisterAllRoutes(router, rest.RouterDeps{
		Config:           config,
		DirectoryDB:      sqlDB,
		WarehousePinger:  warehouseClient,
		Authenticator:    verifier,
		Privileges:       resolver,
		AnalyticsHandler: analyticsHandler,
		DirectoryHandler: directoryHandler,
		RequestValidator: requestValidator,
		Logger:           appLogger,
	})

	return &Dependencies{
		Config:      config,
		DirectoryDB: directoryDB,
		WarehouseDB: warehouseDB,
		Router:      router,
		Cache:       resultCache,
		Bus:         bus,
		Logger:      appLogger,
		stopSweeper: stopSweeper,
	}, nil
}

// initDirectoryDB opens the gorm connection backing the directory and audit
// stores.
func initDirectoryDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open directory db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap directory db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping directory database: %w", err)
	}

	return db, nil
}

// initWarehouseDB opens the sqlx connection to the analytical store.
func initWarehouseDB(cfg internal.WarehouseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping warehouse database: %w", err)
	}

	return dbConn, nil
}
