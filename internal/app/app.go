package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"

	"bazarchat/internal/retention"
	"bazarchat/pkg/banner"
	"bazarchat/pkg/config"
	"bazarchat/pkg/ingest"
	"bazarchat/pkg/logger"
	"bazarchat/pkg/realtime"
	"bazarchat/pkg/store"
	"bazarchat/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	addr      string
	dbPath    string
	cfgSource string
	version   string

	hub       *realtime.Hub
	processor *ingest.Processor
	queued    bool

	srv *http.Server
}

// New initializes resources that do not require a running context:
// config validation, runtime keys, the store, the realtime hub and the
// ingest pipeline. Call Run to start the HTTP server and block until
// shutdown.
func New(cfg *config.Config, addr, dbPath, cfgSource, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	// backend keys double as identity signing keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	telemetry.SetStateDir(filepath.Join(dbPath, "state"))

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	a := &App{
		cfg:       cfg,
		addr:      addr,
		dbPath:    dbPath,
		cfgSource: cfgSource,
		version:   version,
		hub:       realtime.NewHub(),
	}
	a.setupIngest()
	return a, nil
}

// setupIngest wires the hub into fanout and builds the queue/worker
// pool. Queue capacity 0 selects inline mode: writes happen on the
// request goroutine.
func (a *App) setupIngest() {
	ingest.SetHub(a.hub)
	qc := a.cfg.Ingest.Queue
	if qc.MaxPooledBufferBytes > 0 {
		ingest.SetMaxPooledBuffer(int(qc.MaxPooledBufferBytes.Int64()))
	}
	if qc.Capacity == 0 {
		ingest.SetDefaultQueue(nil)
		logger.Info("ingest_inline_mode")
		return
	}
	q := ingest.NewQueue(qc.Capacity)
	ingest.SetDefaultQueue(q)
	a.queued = true
	pc := a.cfg.Ingest.Processor
	a.processor = ingest.NewProcessor(q, pc.Workers, pc.MaxBatchMsgs, pc.FlushInterval.Duration())
}

// Run starts the ingest workers, the retention scheduler and the HTTP
// server, and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.processor != nil {
		a.processor.Start()
	}

	retention.SetConfig(a.cfg)
	cancelRetention, err := retention.Start(ctx, a.cfg)
	if err != nil {
		return err
	}

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	cancelRetention()
	if a.srv != nil {
		_ = a.srv.Close()
	}
	if a.processor != nil {
		a.processor.Stop()
	}
	if cerr := store.Close(); cerr != nil {
		logger.Error("store_close_failed", "error", cerr)
	}
	return err
}

func (a *App) printBanner() {
	banner.Print(a.cfg, a.addr, a.dbPath, a.cfgSource, a.version)
}
