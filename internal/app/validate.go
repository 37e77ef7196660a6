package app

import (
	"fmt"
	"os"
	"time"

	"bazarchat/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(cfg *config.Config, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, BAZARCHAT_SERVER_DB_PATH env, or server.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Period == "" {
			return fmt.Errorf("retention enabled but retention.period is empty")
		}
		if d, err := time.ParseDuration(cfg.Retention.Period); err != nil || d <= 0 {
			return fmt.Errorf("invalid retention.period: %q", cfg.Retention.Period)
		}
	}

	if cfg.Ingest.Queue.Capacity < 0 {
		return fmt.Errorf("ingest.queue.capacity must be >= 0")
	}
	return nil
}
