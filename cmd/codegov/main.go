package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codegov/internal/config"
	"codegov/internal/evidence"
	"codegov/internal/exec"
	"codegov/internal/finops"
	"codegov/internal/langpack"
	"codegov/internal/logging"
	"codegov/internal/mission"
	"codegov/internal/redact"
	"codegov/internal/server"
	"codegov/internal/transform"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codegov",
	Short: "codegov - governance control plane for AI-assisted code change",
	Long: `codegov is the governance control plane for AI-assisted code
modification. It gates every change behind deterministic machinery:

  - a transform engine that applies ChangeSpecs through AST operations
  - a mission workflow with plan/execute/verify/finalize checkpoints
  - content redaction in front of every provider call
  - a cost ledger with budgets, routing, and forecasts
  - an append-only evidence log with exportable audit packs

Run 'codegov serve' to start the HTTP control plane.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments use the environment directly.
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd starts the HTTP control plane.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codegov HTTP control plane",
	Long: `Loads configuration, wires the evidence store, cost ledger,
transform engine, redaction pipeline, and mission coordinator, then
serves the HTTP surface until interrupted.`,
	RunE: runServe,
}

// versionCmd prints the configured service version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codegov version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Store.Path, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	if err := logging.Initialize(cfg.Store.Path, logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	logging.Boot("codegov %s starting, store at %s", cfg.Version, cfg.Store.Path)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Evidence and finops.
	events, err := evidence.NewStore(filepath.Join(cfg.Store.Path, "events"))
	if err != nil {
		return fmt.Errorf("open evidence store: %w", err)
	}
	usage, err := finops.NewUsageLog(cfg.UsageLogPath())
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	ledger := finops.NewLedger(finops.NewPricingTable(), usage, events)

	// Transform engine.
	typecheckTimeout, err := cfg.TypecheckTimeout()
	if err != nil {
		return err
	}
	mutationTimeout, err := cfg.MutationTimeout()
	if err != nil {
		return err
	}
	engine := transform.NewEngine(langpack.NewRegistry(), exec.New(), transform.Config{
		ExcludeDirs:      cfg.Transform.ExcludeDirs,
		TypecheckTimeout: typecheckTimeout,
		MutationTimeout:  mutationTimeout,
	})

	// Redaction, with optional hot-reloaded custom policies.
	redactor := redact.New()
	if cfg.Redact.PolicyFile != "" {
		policies, err := redact.LoadPolicyFile(cfg.Redact.PolicyFile)
		if err != nil {
			return fmt.Errorf("load policy file: %w", err)
		}
		if err := redactor.ReplaceCustom(policies); err != nil {
			return fmt.Errorf("install custom policies: %w", err)
		}
		watcher, err := redact.NewWatcher(cfg.Redact.PolicyFile, redactor)
		if err != nil {
			return fmt.Errorf("watch policy file: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start policy watcher: %w", err)
		}
	}

	coord := mission.NewCoordinator(redactor, engine, events)
	srv := server.New(cfg, coord, engine, redactor, ledger, events, logger)

	err = srv.Run(ctx)

	// Flush any usage not yet persisted by the debounced writer.
	if saveErr := usage.Save(); saveErr != nil && err == nil {
		err = fmt.Errorf("save usage log: %w", saveErr)
	}
	logging.Boot("codegov stopped")
	logging.Reset()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "codegov.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
