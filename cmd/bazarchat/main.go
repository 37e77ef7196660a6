package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"bazarchat/internal/app"
	"bazarchat/pkg/config"
	"bazarchat/pkg/logger"
	"bazarchat/pkg/shutdown"
)

// build metadata - set via ldflags during release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// flags win over config/env when explicitly provided
	addr := addrVal
	if !setFlags["addr"] {
		addr = cfg.Addr()
	}
	dbPath := dbVal
	if !setFlags["db"] {
		if p := cfg.Server.DBPath; p != "" {
			dbPath = p
		}
	}

	logger.InitWithLevel(cfg.Logging.Level)

	source := "flags"
	switch {
	case cfgPath != "" && envUsed:
		source = cfgPath + " + env"
	case cfgPath != "":
		source = cfgPath
	case envUsed:
		source = "env"
	}

	a, err := app.New(cfg, addr, dbPath, source, version)
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath, 3)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited with error", err, dbPath, 3)
	}
	logger.Info("server_stopped")
}
