package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"bazarchat/pkg/config"
	"bazarchat/pkg/logger"
	"bazarchat/pkg/store"
)

var storedCfg *config.Config

// SetConfig stores the effective config so admin triggers can invoke
// retention runs on demand.
func SetConfig(cfg *config.Config) {
	storedCfg = cfg
}

// RunImmediate triggers a single retention run using the stored config.
func RunImmediate() error {
	if storedCfg == nil {
		return fmt.Errorf("no config registered for retention run")
	}
	return runOnce(storedCfg)
}

// Start starts the purge scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	ret := cfg.Retention
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	statePath := filepath.Join(cfg.Server.DBPath, "state", "retention")
	if err := os.MkdirAll(statePath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", statePath, "error", err)
		return nil, err
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, cfg *config.Config, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if err := runOnce(cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce purges messages older than the configured period.
func runOnce(cfg *config.Config) error {
	ret := cfg.Retention
	period, err := time.ParseDuration(ret.Period)
	if err != nil || period <= 0 {
		return fmt.Errorf("invalid retention period: %q", ret.Period)
	}
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	sleep := time.Duration(ret.BatchSleepMs) * time.Millisecond

	start := time.Now()
	deleted, err := store.PurgeMessagesBefore(cutoff, ret.BatchSize, sleep, ret.DryRun)
	if err != nil {
		return err
	}
	logger.Info("retention_run_complete",
		"deleted", deleted,
		"dry_run", ret.DryRun,
		"took", time.Since(start).String())
	return nil
}
