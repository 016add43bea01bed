package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var (
		configPathFlag = flag.String("config", "", "path to config file (default ~/.konsilium/config.toml)")
		bindFlag       = flag.String("bind", "", "gRPC bind address")
		dataDirFlag    = flag.String("data-dir", "", "base data dir (default ~/.konsilium)")
		historyFlag    = flag.String("history", "", "history backend: sqlite, file or memory")
	)
	flag.Parse()

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	daemonConfig, err := config.LoadOrCreate(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setIfNotEmpty := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}

	setIfNotEmpty(&daemonConfig.Bind, *bindFlag)
	setIfNotEmpty(&daemonConfig.DataDir, *dataDirFlag)
	setIfNotEmpty(&daemonConfig.History.Backend, *historyFlag)

	daemonConfig.Debug = config.LoadDebugConfigFromEnv(daemonConfig.Debug)

	if err := daemonConfig.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := app.RunServer(daemonConfig); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
