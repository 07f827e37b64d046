// Command portfoliod answers natural-language questions about a real-estate
// portfolio ledger over HTTP, or over MCP on stdio with "portfoliod mcp".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/config"
	httpserver "github.com/fyrsmithlabs/portfoliod/internal/http"
	"github.com/fyrsmithlabs/portfoliod/internal/logging"
	mcpserver "github.com/fyrsmithlabs/portfoliod/internal/mcp"
	"github.com/fyrsmithlabs/portfoliod/internal/telemetry"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

type mode string

const (
	modeServe mode = "serve"
	modeMCP   mode = "mcp"
)

type options struct {
	configPath string
	envFile    string
	mode       mode
}

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/portfoliod/config.yaml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before configuration; missing is fine")
	flag.Usage = usage
	flag.Parse()

	opts := options{configPath: *configPath, envFile: *envFile, mode: modeServe}
	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			return
		case "serve":
		case "mcp":
			opts.mode = modeMCP
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
			usage()
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "portfoliod: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: portfoliod [flags] [command]

Commands:
  serve     run the HTTP API (default)
  mcp       serve MCP over stdin/stdout
  version   print build information

Flags:
`)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Printf("portfoliod %s\n", version)
	fmt.Printf("  commit: %s\n", gitCommit)
	fmt.Printf("  built:  %s\n", buildDate)
}

func run(ctx context.Context, opts options) error {
	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	telCfg := telemetry.FromSettings(cfg.Telemetry, version)
	telCfg.Logs.Enabled = cfg.Logging.OTEL
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if opts.mode == modeMCP {
		// stdout carries the MCP protocol.
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if logCfg.Output.OTEL && tel.LoggerProvider() == nil {
		logger.Warn(ctx, "logging.otel is set but telemetry export is disabled, logs stay local")
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("problems", h.Problems))
	}

	a, err := buildApp(ctx, cfg, logger.Underlying())
	if err != nil {
		return err
	}
	defer a.Close()

	switch opts.mode {
	case modeMCP:
		return runMCP(ctx, a, logger, tel)
	default:
		return runHTTP(ctx, cfg, a, logger, tel)
	}
}

func runHTTP(ctx context.Context, cfg *config.Config, a *app, logger *logging.Logger, tel *telemetry.Telemetry) error {
	srv, err := httpserver.NewServer(a.sup, logger, &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		Version:         version,
		Meter:           tel.Meter("portfoliod.http"),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}
	logger.Info(ctx, "portfoliod starting",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
	)
	return srv.Start(ctx)
}

func runMCP(ctx context.Context, a *app, logger *logging.Logger, tel *telemetry.Telemetry) error {
	fmt.Fprintf(os.Stderr, "portfoliod %s: serving MCP on stdio\n", version)
	srv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:    "portfoliod",
		Version: version,
		Logger:  logger.Named("mcp").Underlying(),
		Meter:   tel.Meter("portfoliod.mcp"),
	}, a.sup)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
