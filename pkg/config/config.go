package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadEffective loads the config file (when present) and applies
// environment overrides on top. It reports whether any BAZARCHAT_*
// environment variable contributed to the result.
func LoadEffective(path string) (*Config, bool, error) {
	cfg := &Config{}
	if path != "" {
		if loaded, err := Load(path); err == nil {
			cfg = loaded
		} else if !os.IsNotExist(err) {
			return nil, false, err
		}
	}
	envUsed := applyEnv(cfg)
	return cfg, envUsed, nil
}

// applyEnv overlays BAZARCHAT_* environment variables onto cfg and
// reports whether any were set.
func applyEnv(cfg *Config) bool {
	used := false
	setStr := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
			used = true
		}
	}
	setStr("BAZARCHAT_SERVER_ADDRESS", &cfg.Server.Address)
	setStr("BAZARCHAT_SERVER_DB_PATH", &cfg.Server.DBPath)
	setStr("BAZARCHAT_LOG_LEVEL", &cfg.Logging.Level)
	setStr("BAZARCHAT_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	setStr("BAZARCHAT_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	setStr("BAZARCHAT_RETENTION_CRON", &cfg.Retention.Cron)
	setStr("BAZARCHAT_RETENTION_PERIOD", &cfg.Retention.Period)

	if v := strings.TrimSpace(os.Getenv("BAZARCHAT_SERVER_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
			used = true
		}
	}
	if v := strings.TrimSpace(os.Getenv("BAZARCHAT_RETENTION_ENABLED")); v != "" {
		cfg.Retention.Enabled = isTruthy(v)
		used = true
	}
	// comma-separated key lists
	setKeys := func(name string, dst *[]string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				*dst = out
				used = true
			}
		}
	}
	setKeys("BAZARCHAT_API_BACKEND_KEYS", &cfg.Security.APIKeys.Backend)
	setKeys("BAZARCHAT_API_FRONTEND_KEYS", &cfg.Security.APIKeys.Frontend)
	setKeys("BAZARCHAT_API_ADMIN_KEYS", &cfg.Security.APIKeys.Admin)
	setKeys("BAZARCHAT_CORS_ALLOWED_ORIGINS", &cfg.Security.CORS.AllowedOrigins)
	return used
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ParseCommandFlags parses the standard command-line flags and returns
// the raw values plus a set of flags the user explicitly provided.
func ParseCommandFlags() (addr, dbPath, cfgPath string, set map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./data", "pebble database path")
	cfgFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then BAZARCHAT_CONFIG, then the conventional default when it exists.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := strings.TrimSpace(os.Getenv("BAZARCHAT_CONFIG")); v != "" {
		return v
	}
	if _, err := os.Stat("bazarchat.yaml"); err == nil {
		return "bazarchat.yaml"
	}
	return ""
}
