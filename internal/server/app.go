// Package server wires the modzart server together: database and
// migrations, the blob store, the malware scanner, the upload pipeline and
// its background workers, and the HTTP and gRPC listeners.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/dmitrijs2005/modzart/internal/server/config"
	gs "github.com/dmitrijs2005/modzart/internal/server/grpc"
	"github.com/dmitrijs2005/modzart/internal/server/httpapi"
	"github.com/dmitrijs2005/modzart/internal/server/metrics"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/modzart/internal/server/scanner"
	"github.com/dmitrijs2005/modzart/internal/server/services"
	"github.com/dmitrijs2005/modzart/internal/server/upload"
	"github.com/dmitrijs2005/modzart/internal/server/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// healthRefreshInterval is how often the gRPC health status is recomputed.
const healthRefreshInterval = 15 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	modService  *services.ModService
	userService *services.UserService
	pool        *worker.Pool[services.UploadTask]
	registry    *prometheus.Registry
	files       httpapi.LocalFiles
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := blobstore.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(registry)

	scan := scanner.New(c, logger.With("module", "scanner"))
	uploads, err := upload.New(store, scan, upload.Options{
		TempDir: c.TempUploadDir,
		MaxSize: c.MaxUploadSize,
		Metrics: m,
	}, logger.With("module", "upload"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upload pipeline init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, registry: registry}

	opts := services.ModServiceOptions{DownloadURLTTL: c.DownloadURLTTL, Metrics: m}
	if c.UploadMode == config.UploadModeAsync {
		app.pool = worker.New[services.UploadTask](c.UploadWorkers, c.UploadQueueSize, logger, m)
		opts.Queue = app.pool
	}

	app.modService = services.NewModService(db, rm, uploads, store, opts, logger.With("module", "mods"))
	app.userService = services.NewUserService(db, rm, c)

	if local, ok := store.(*blobstore.Local); ok {
		app.files = local
	}

	logger.Info(ctx, "App initialized",
		"storage", c.StorageMode,
		"upload_mode", c.UploadMode,
		"scanning", c.ScanningEnabled(),
	)
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context) error {
	s := httpapi.NewServer(httpapi.Options{
		Address:        app.config.EndpointAddrHTTP,
		AllowedOrigins: app.config.AllowedOrigins,
		MaxUploadSize:  app.config.MaxUploadSize,
		Files:          app.files,
		Gatherer:       app.registry,
	}, app.logger, app.modService, app.userService)
	return s.Run(ctx)
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.db.PingContext)

	go func() {
		t := time.NewTicker(healthRefreshInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Refresh(ctx)
			}
		}
	}()

	return s.Run(ctx)
}

// Run serves until a signal arrives or one of the listeners fails. Queued
// uploads are drained before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.startHTTPServer(gctx) })
	g.Go(func() error { return app.startGRPCServer(gctx) })
	if app.pool != nil {
		g.Go(func() error { return app.pool.Run(gctx, app.modService.ProcessJob) })
	}

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close failed", "error", cerr)
	}
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}
