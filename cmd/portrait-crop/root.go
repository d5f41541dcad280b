package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	portraitcrop "github.com/menta2k/portrait-crop"
	"github.com/menta2k/portrait-crop/internal/config"
	"github.com/menta2k/portrait-crop/internal/logging"
	"github.com/menta2k/portrait-crop/internal/store"
)

// app carries state shared by subcommands
type app struct {
	configPath string
	dbURL      string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "portrait-crop",
		Short:         "Crop photos into face-anchored 3:4 portraits",
		Version:       portraitcrop.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.GetConfigPath(), "configuration file")
	flags.StringVar(&a.dbURL, "db", "", "PostgreSQL connection string for run history (default: $PORTRAIT_CROP_DATABASE_URL or POSTGRES_* variables)")
	flags.StringVar(&a.logLevel, "log-level", "", "diagnostic log level: debug|info|warn|error")
	flags.StringVar(&a.logFormat, "log-format", "", "diagnostic log format: text|json")

	root.AddCommand(
		newCropCmd(a),
		newGeometryCmd(a),
		newConfigCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// load reads the config file and environment, then applies persistent flags
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.DatabaseURL = a.dbURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore connects to the run-history database, or returns nil when none is configured
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.cfg.Store.DatabaseURL == "" {
		return nil, nil
	}
	s, err := store.New(ctx, a.cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return s, nil
}
