// =============================================================================
// main.go - Entry Point for catalog-sync-workflow
// =============================================================================
//
// This is the entry point for the catalog-sync-workflow service. It handles:
//   - Configuration (defaults, TOML file, environment, flags)
//   - Signal handling (SIGINT/SIGTERM for graceful shutdown)
//   - Logger initialization
//   - Choosing between a single run (--once) and service mode
//
// USAGE:
//
//	catalog-sync-workflow \
//	  --config /etc/catalog-sync/config.toml \
//	  [--once] \
//	  [--dry-run] \
//	  [--compact] \
//	  [--max-products 100] \
//	  [--source-url https://...] \
//	  [--store rocksdb|postgres|memory] \
//	  [--http-addr :3000]
//
// MAINTENANCE:
//
//	--compact opens the RocksDB store, runs a full manual compaction of the
//	history and products column families and exits without importing.
//
// SERVICE MODE (default):
//
//	Serves the HTTP API and triggers an import every schedule_interval
//	until SIGINT or SIGTERM. An in-flight run is cancelled on shutdown and
//	its current file is not committed.
//
// EXIT CODES:
//
//	0 - Success
//	1 - Configuration error
//	2 - Runtime error (store unavailable, --once run aborted)
//	130 - Interrupted by SIGINT
//	143 - Terminated by SIGTERM
//
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/rocksdb"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// Version is the tool version
	Version = "1.0.0"

	// ToolName is the name of this tool
	ToolName = "catalog-sync-workflow"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRuntimeError = 2
	ExitInterrupted  = 130 // 128 + SIGINT(2)
	ExitTerminated   = 143 // 128 + SIGTERM(15)
)

// =============================================================================
// Main Entry Point
// =============================================================================

func main() {
	config, showVersion, err := parseFlags(os.Args[1:], os.LookupEnv, os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(ExitSuccess)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(ExitConfigError)
	}
	if showVersion {
		fmt.Printf("%s version %s\n", ToolName, Version)
		os.Exit(ExitSuccess)
	}

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	logger, err := logging.NewDualLogger(config.Log.File, config.Log.ErrorFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(ExitConfigError)
	}

	os.Exit(run(config, logger))
}

// run executes the configured mode and returns the exit code. It closes the
// logger before returning.
func run(config *Config, logger *logging.DualLogger) int {
	defer logger.Close()

	logStartup(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.DryRun {
		config.PrintConfig(logger)
		logDryRunStoreState(ctx, config, logger)

		logger.Separator()
		logger.Info("                         DRY RUN COMPLETE")
		logger.Separator()
		logger.Info("")
		logger.Info("Configuration validated successfully.")
		logger.Info("No import executed (--dry-run mode).")
		logger.Info("")
		logger.Sync()

		fmt.Println("Dry run complete. Configuration is valid.")
		return ExitSuccess
	}

	config.PrintConfig(logger)

	if config.Compact {
		return compactStore(config, logger)
	}

	var received atomic.Value
	sigChan := setupSignalHandling()
	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		received.Store(sig)
		logger.Info("Received signal: %v", sig)
		logger.Info("Initiating graceful shutdown...")
		cancel()
	}()
	defer signal.Stop(sigChan)

	workflow, err := NewWorkflow(ctx, config, logger)
	if err != nil {
		logger.Error("Failed to create workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to create workflow: %v\n", err)
		return ExitRuntimeError
	}
	defer workflow.Close()

	if config.Once {
		report := workflow.RunOnce(ctx)
		if code, ok := signalExitCode(received.Load()); ok {
			return code
		}
		if report.State == importer.StateAborted {
			fmt.Fprintf(os.Stderr, "Import aborted: %s\n", report.Err)
			return ExitRuntimeError
		}
		fmt.Printf("Import complete: %d records from %d files\n",
			report.Records, report.Count(importer.OutcomeCommitted))
		return ExitSuccess
	}

	if err := workflow.Serve(ctx); err != nil {
		logger.Error("Service failed: %v", err)
		fmt.Fprintf(os.Stderr, "Service failed: %v\n", err)
		return ExitRuntimeError
	}
	if code, ok := signalExitCode(received.Load()); ok {
		return code
	}
	return ExitSuccess
}

// =============================================================================
// Flag Parsing
// =============================================================================

// parseFlags resolves the configuration from args, the environment and the
// file named by --config. Flags win over the file and the environment.
func parseFlags(args []string, lookupEnv func(string) (string, bool), usageOut io.Writer) (*Config, bool, error) {
	fs := flag.NewFlagSet(ToolName, flag.ContinueOnError)
	fs.SetOutput(usageOut)

	var (
		configPath  string
		once        bool
		dryRun      bool
		compact     bool
		showVersion bool
		maxProducts int
		sourceURL   string
		backend     string
		storePath   string
		httpAddr    string
		logFile     string
		errorFile   string
	)
	fs.StringVar(&configPath, "config", "", "Path to TOML configuration file")
	fs.BoolVar(&once, "once", false, "Run a single import and exit")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration, show store state and exit")
	fs.BoolVar(&compact, "compact", false, "Compact the RocksDB store and exit")
	fs.BoolVar(&showVersion, "version", false, "Show version and exit")
	fs.IntVar(&maxProducts, "max-products", 0, "Records per file per run (overrides "+EnvMaxProducts+")")
	fs.StringVar(&sourceURL, "source-url", "", "Catalog base URL, http(s):// or s3://")
	fs.StringVar(&backend, "store", "", "Store backend: rocksdb, postgres or memory")
	fs.StringVar(&storePath, "store-path", "", "RocksDB directory")
	fs.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	fs.StringVar(&logFile, "log-file", "", "Path to main log file (default stdout)")
	fs.StringVar(&errorFile, "error-file", "", "Path to error log file (default stderr)")

	fs.Usage = func() {
		fmt.Fprintf(usageOut, "Usage: %s [options]\n\n", ToolName)
		fmt.Fprintf(usageOut, "%s pulls a gzip NDJSON product catalog into a local store,\n", ToolName)
		fmt.Fprintf(usageOut, "resuming each file from the byte offset of the previous run.\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(usageOut, "\nEnvironment:\n")
		fmt.Fprintf(usageOut, "  %-22s records per file per run\n", EnvMaxProducts)
		fmt.Fprintf(usageOut, "  %-22s catalog base URL\n", EnvSourceURL)
		fmt.Fprintf(usageOut, "  %-22s postgres connection string\n", EnvPGDSN)
		fmt.Fprintf(usageOut, "\nSignal handling:\n")
		fmt.Fprintf(usageOut, "  SIGINT/SIGTERM         Graceful shutdown\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if showVersion {
		return nil, true, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, false, err
	}
	if err := config.ApplyEnv(lookupEnv); err != nil {
		return nil, false, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-products":
			config.Import.MaxProducts = maxProducts
		case "source-url":
			config.Source.BaseURL = sourceURL
		case "store":
			config.Store.Backend = backend
		case "store-path":
			config.Store.Path = storePath
		case "http-addr":
			config.HTTP.Addr = httpAddr
		case "log-file":
			config.Log.File = logFile
		case "error-file":
			config.Log.ErrorFile = errorFile
		}
	})
	config.Once = once
	config.DryRun = dryRun
	config.Compact = compact

	return config, false, nil
}

// =============================================================================
// Signal Handling
// =============================================================================

// setupSignalHandling returns a channel receiving SIGINT and SIGTERM.
func setupSignalHandling() chan os.Signal {
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	return termChan
}

// signalExitCode maps a received signal to its exit code.
func signalExitCode(v interface{}) (int, bool) {
	sig, ok := v.(os.Signal)
	if !ok {
		return 0, false
	}
	if sig == syscall.SIGINT {
		return ExitInterrupted, true
	}
	return ExitTerminated, true
}

// =============================================================================
// Startup Logging
// =============================================================================

func logStartup(logger interfaces.Logger) {
	logger.Separator()
	logger.Info("                    %s v%s", ToolName, Version)
	logger.Separator()
	logger.Info("")
	logger.Info("Process ID:  %d", os.Getpid())
	logger.Info("Working Dir: %s", mustGetwd())
	logger.Info("")
	logger.Sync()
}

// mustGetwd returns the current working directory or "unknown".
func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}

// logDryRunStoreState reports where the next run would resume. Nothing is
// written to the store.
func logDryRunStoreState(ctx context.Context, config *Config, logger interfaces.Logger) {
	logger.Separator()
	logger.Info("                         STORE STATE")
	logger.Separator()
	logger.Info("")

	if config.Store.Backend == store.BackendRocksDB && !helpers.FileExists(config.Store.Path) {
		logger.Info("Store does not exist: %s", config.Store.Path)
		logger.Info("This will be a FRESH START (no previous imports to resume)")
		logger.Info("")
		return
	}
	if config.Store.Backend == store.BackendMemory {
		logger.Info("Memory store: every start is a FRESH START")
		logger.Info("")
		return
	}

	st, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Error("Failed to open store: %v", err)
		logger.Info("")
		return
	}
	defer st.Close()

	count, err := st.Count(ctx)
	if err != nil {
		logger.Error("Failed to count products: %v", err)
		return
	}
	row, found, err := st.Latest(ctx)
	if err != nil {
		logger.Error("Failed to read import history: %v", err)
		return
	}

	logger.Info("Products:              %s", helpers.FormatNumber(count))
	if rs, ok := st.(*rocksdb.Store); ok {
		for _, cf := range rs.Stats() {
			logger.Info("  CF %-18s ~%s keys, %d files, %s",
				cf.Name+":", helpers.FormatNumber(cf.EstimatedKeys), cf.TotalFiles, helpers.FormatBytes(cf.TotalSize))
		}
	}
	if !found {
		logger.Info("Last Import:           none (FRESH START)")
	} else {
		logger.Info("Last Import:           %s at %s", row.Source, row.Date.Format("2006-01-02 15:04:05"))
		logger.Info("  Offset:              %s bytes", helpers.FormatNumber(row.Offset))
		logger.Info("  Quantity:            %d", row.Quantity)
	}
	logger.Info("")
}

// compactStore opens the RocksDB store, compacts it and exits. No import runs.
func compactStore(config *Config, logger interfaces.Logger) int {
	st, err := rocksdb.Open(config.Store.Path, config.Store.RocksDB, logger)
	if err != nil {
		logger.Error("Failed to open store: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return ExitRuntimeError
	}
	defer st.Close()

	elapsed, err := st.Compact()
	if err != nil {
		logger.Error("Compaction failed: %v", err)
		return ExitRuntimeError
	}
	fmt.Printf("Compaction complete in %s\n", helpers.FormatDuration(elapsed))
	return ExitSuccess
}
