package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/docintake/template-engine/internal/config"
	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/engine"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/mcp"
	"github.com/docintake/template-engine/internal/store"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the execution mode
func setupLogging(cfg *config.Config) *logging.Logger {
	// In stdio mode everything goes to stderr to avoid interfering
	// with the MCP protocol on stdout
	console := !cfg.IsStdioMode()
	level := cfg.LogLevel
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		level = "error"
	}
	return logging.New(os.Stderr, level, console)
}

// runStdioMode serves the MCP tool server until the parent process
// closes stdin or sends a termination signal
func runStdioMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *logging.Logger) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		if err := <-serverErrCh; err != nil {
			logger.Error().Err(err).Msg("server shutdown with error")
			os.Exit(1)
		}
	case err := <-serverErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}
}

// runMatchMode matches each document given as a positional argument and
// prints the outcome
func runMatchMode(ctx context.Context, eng *engine.Service, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("match mode requires at least one document path")
	}

	loader := docsource.NewPDFLoader()
	docs := make([]*docsource.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := loader.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		docs = append(docs, doc)
	}

	items, err := eng.BatchMatch(ctx, docs)
	if err != nil {
		return err
	}

	printBatchItems(os.Stdout, items)
	return nil
}

// printBatchItems writes one line per document, plus the successfully
// extracted fields of matched documents
func printBatchItems(w io.Writer, items []engine.BatchItem) {
	for _, item := range items {
		if item.Error != "" {
			fmt.Fprintf(w, "%s: ERROR: %s\n", item.DocumentPath, item.Error)
			continue
		}
		outcome := item.Outcome
		if !outcome.Matched {
			fmt.Fprintf(w, "%s: no match (%s)\n", item.DocumentPath, outcome.Reason)
			continue
		}
		fmt.Fprintf(w, "%s: %s (%s) confidence %.2f\n",
			item.DocumentPath, outcome.Match.Template.Name, outcome.Match.Template.ID, outcome.Confidence())
		if outcome.Extraction != nil {
			for _, f := range outcome.Extraction.Fields {
				if f.Success {
					fmt.Fprintf(w, "  %s = %q (%.2f)\n", f.FieldName, f.Value, f.Confidence)
				}
			}
		}
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && !cfg.IsStdioMode() {
		logger.Debug().Str("config", cfg.String()).Msg("starting")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open template store")
	}
	defer st.Close()

	eng := engine.New(cfg, st, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, eng, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create MCP server")
		}
		runStdioMode(ctx, cancel, server, logger)
		return
	}

	if err := runMatchMode(ctx, eng, pflag.Args()); err != nil {
		logger.Fatal().Err(err).Msg("match failed")
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Template Engine\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
