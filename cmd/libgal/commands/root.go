package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"libgal/lib/configutil"
	"libgal/lib/env"
	"libgal/lib/logging"
	"libgal/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
	logFormat  string
	logLevel   string
	appName    string
	withOtel   bool
)

var rootCmd = &cobra.Command{
	Use:           "libgal",
	Short:         "libgal moves tables between CSV files, SQLite, MySQL and Teradata.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		state, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		cmd.SetContext(withState(cmd.Context(), state))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stateFrom(cmd.Context()).shutdown(context.Background())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", ConfigFile, "The json5 config file holding database profiles.")
	flags.StringVar(&envPath, "env", ".env", "A dotenv file loaded before the config is expanded.")
	flags.StringVar(&logFormat, "log-format", "", "Log line format, JSON or CSV. Overrides the config.")
	flags.StringVar(&logLevel, "log-level", "", "Minimum log level. Overrides the config.")
	flags.StringVar(&appName, "app-name", "", "Application name written on every log line.")
	flags.BoolVar(&withOtel, "telemetry", false, "Export traces and metrics using telemetry.json5.")
}

func setup(ctx context.Context) (*state, error) {
	if _, err := env.Load(envPath, slog.Default()); err != nil {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg, readErr := configutil.ReadConfig[Config](configPath)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return nil, readErr
	}
	configutil.ExpandEnv(&cfg, nil)
	cfg.Log = cfg.Log.override(logFormat, logLevel, appName)

	logOpts, err := cfg.Log.options()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, logOpts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	if readErr != nil {
		logger.Debug("no config file found, using defaults", "path", configPath)
	}

	s := &state{config: cfg, logger: logger}
	if withOtel {
		s.telemetry, err = telemetry.SetupFromEnv(ctx, cfg.Log.AppName, logger)
		if err != nil {
			return nil, fmt.Errorf("setup telemetry: %w", err)
		}
		telemetry.InstrumentProcess(ctx, s.telemetry.Config, logger)
	}
	return s, nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
