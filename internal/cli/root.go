// Package cli implements the konsilium command line.
package cli

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/config"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "konsilium",
		Short:         "Tool-calling agent and model comparison console",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("server", "", "daemon address")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newAgentCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newTemperatureCmd())
	rootCmd.AddCommand(newExpertsCmd())
	rootCmd.AddCommand(newQuizCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func configPath(path string) string {
	if path == "" {
		return config.DefaultPath()
	}
	return path
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.LoadOrCreate(configPath(path))
	if err != nil {
		return cfg, err
	}

	cfg.Debug = config.LoadDebugConfigFromEnv(cfg.Debug)
	return cfg, nil
}

func resolveServer(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	return clientAddrFromBind(cfg.Bind)
}

func clientAddrFromBind(bind string) string {
	host, port, err := netSplitHostPort(bind)
	if err != nil || port == "" {
		return bind
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1:" + port
	}
	return bind
}

func netSplitHostPort(addr string) (string, string, error) {
	if strings.HasPrefix(addr, ":") {
		return "", strings.TrimPrefix(addr, ":"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}

func alreadyRunning(cfg config.Config) bool {
	return app.ReadPID(app.PIDFile(cfg)) != 0
}

func printServerNotRunning(addr string, err error) {
	fmt.Println(styleError.Render("server is not running at " + addr))
	fmt.Println("start with: " + styleToolName.Render("konsilium serve"))
	if err != nil {
		fmt.Println(styleDim.Render(err.Error()))
	}
}

func startServer(cfg config.Config, configPath string) error {
	if alreadyRunning(cfg) {
		fmt.Println(styleDim.Render("server already running at " + resolveServer("", cfg)))
		return nil
	}

	serverCmd := exec.Command(os.Args[0], "serve", "--foreground")
	if configPath != "" {
		serverCmd.Args = append(serverCmd.Args, "--config", configPath)
	}

	logFile := filepath.Join(cfg.DataDir, "server.log")
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("start server: create data dir: %w", err)
	}

	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("start server: open log: %w", err)
	}
	defer out.Close()

	serverCmd.Stdout = out
	serverCmd.Stderr = out

	if err := serverCmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Println(
		styleSuccess.Render("started server") + " " +
			stylePID.Render(fmt.Sprintf("pid %d", serverCmd.Process.Pid)))
	return nil
}
