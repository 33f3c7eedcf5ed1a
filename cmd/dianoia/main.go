package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/auditmos/dianoia/claims"
	"github.com/auditmos/dianoia/dashboard"
	"github.com/auditmos/dianoia/logging"
	"github.com/auditmos/dianoia/storage"
	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:    "dianoia",
		Usage:   "argument mapping back end with a structured debug log",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Commands: []*cli.Command{
			serveCommand(),
			tailCommand(),
			exportCommand(),
			configCommand(),
			rulesCommand(),
		},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "settings database path (default: ~/.dianoia/dianoia.db)",
		EnvVars: []string{"DIANOIA_DB"},
	}
}

func addrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "addr",
		Aliases: []string{"a"},
		Value:   defaultAddr,
		Usage:   "server address",
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the API server and debug panel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (yaml, json or toml)",
			},
			addrFlag(),
			dbFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "also write entries as JSONL to this rotating file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print console entries as JSON lines",
			},
			&cli.StringFlag{
				Name:  "provider",
				Value: claims.ProviderOpenAI,
				Usage: "LLM provider: openai or openrouter",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "model name",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "override the provider base URL",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "provider API key (default: OPENAI_API_KEY or OPENROUTER_API_KEY)",
			},
			&cli.StringFlag{
				Name:  "templates",
				Usage: "directory of panel template overrides",
			},
			&cli.IntFlag{
				Name:  "generate-rate",
				Value: defaultGenerateRate,
				Usage: "claim generations allowed per client per minute (0 disables the limit)",
			},
			&cli.IntFlag{
				Name:  "max-streams",
				Value: defaultMaxStreams,
				Usage: "concurrent log streams allowed per client (0 disables the limit)",
			},
			&cli.DurationFlag{
				Name:  "export-retention",
				Value: defaultExportRetention,
				Usage: "drop saved exports older than this (0 keeps them)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadServeConfig(c)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *serveConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	db, err := storage.OpenDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	settings := storage.NewSQLiteSettingsRepo(db)
	ruleRepo := storage.NewSQLiteRedactionRuleRepo(db)
	if err := ruleRepo.Seed(); err != nil {
		return fmt.Errorf("seed redaction rules: %w", err)
	}
	redactor, err := storage.NewRedactorWithRepo(ruleRepo, nil)
	if err != nil {
		return fmt.Errorf("init redactor: %w", err)
	}

	logger, cleanup, err := initLogger(cfg, settings, redactor.Sanitizer())
	if err != nil {
		return err
	}
	defer cleanup()

	var generator dashboard.ClaimGenerator
	gen, err := claims.NewOpenAIGenerator(ctx, cfg.openAIConfig())
	if err != nil {
		logger.TrackError(err, "claims", "configure", logging.Fields{"provider": cfg.Provider})
		logger.Warn("claims", "configure", "Claim generation disabled")
	} else {
		generator = claims.NewService(gen, nil)
	}

	srv, err := dashboard.NewServer(dashboard.ServerConfig{
		Addr:         cfg.Addr,
		Logger:       logger,
		Settings:     settings,
		Exports:      storage.NewSQLiteExportRepo(db),
		Redactor:     redactor,
		Claims:       generator,
		OverridesDir: cfg.Templates,

		GeneratePerMin: cfg.GenerateRate,
		MaxStreams:     cfg.MaxStreams,

		ExportRetention: cfg.ExportRetention,
	})
	if err != nil {
		return fmt.Errorf("init dashboard: %w", err)
	}

	srv.SetReadyCallback(func() {
		fmt.Printf("Debug panel: http://%s\n", srv.Addr())
	})

	return srv.Start(ctx)
}

// initLogger builds the process logger. Environment settings are applied
// before stored ones so the panel's last choice wins across restarts.
func initLogger(cfg *serveConfig, settings logging.KeyValueStore, sanitizer *logging.Sanitizer) (*logging.DebugLogger, func(), error) {
	lc := logging.LoggerConfig{
		Output: os.Stderr,
		Sources: []logging.SettingSource{
			logging.EnvSource{},
			logging.StoreSource{Store: settings},
		},
		Sanitizer: sanitizer,
	}
	if cfg.JSON {
		lc.Formatter = &logging.JSONFormatter{}
	}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		lc.File = &logging.FileSinkConfig{Path: cfg.LogFile}
		lc.Config.LogToFile = logging.Ptr(true)
	}

	logger := logging.New(lc)
	cleanup := func() {
		logger.Close()
	}
	return logger, cleanup, nil
}

func getDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".dianoia")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "dianoia.db"), nil
}

func resolveDBPath(c *cli.Context) (string, error) {
	if p := c.String("db"); p != "" {
		return p, nil
	}
	return getDBPath()
}
