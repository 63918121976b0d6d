package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"libgal/lib/browser"
	"libgal/lib/database"
	"libgal/lib/logging"
	"libgal/lib/telemetry"
)

const ConfigFile = "libgal.json5"

type LogConfig struct {
	// Format is JSON or CSV.
	Format  string `json:"format"`
	Level   string `json:"level"`
	AppName string `json:"app_name"`
}

func (c LogConfig) override(format, level, name string) LogConfig {
	if format != "" {
		c.Format = format
	}
	if level != "" {
		c.Level = level
	}
	if name != "" {
		c.AppName = name
	}
	if c.Format == "" {
		c.Format = "JSON"
	}
	if c.AppName == "" {
		c.AppName = "libgal"
	}
	return c
}

func (c LogConfig) options() (logging.Options, error) {
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return logging.Options{}, err
	}
	return logging.Options{
		Format: format,
		Name:   c.AppName,
		Level:  logging.ParseLevel(c.Level),
	}, nil
}

type Config struct {
	Log LogConfig `json:"log"`
	// Databases maps a profile name to its connection options. Secrets are
	// usually written as $VARS and filled in from the environment.
	Databases map[string]database.Options `json:"databases"`
	Browser   browser.Options             `json:"browser"`
	// Home is the job entry point used by clean, output directories live
	// next to it.
	Home string `json:"home"`
}

func (c Config) profile(name string) (database.Options, error) {
	if name == "" && len(c.Databases) == 1 {
		for _, opts := range c.Databases {
			return opts, nil
		}
	}
	opts, ok := c.Databases[name]
	if !ok {
		return database.Options{}, fmt.Errorf("unknown database profile %q, known profiles: %s", name, strings.Join(c.profiles(), ", "))
	}
	return opts, nil
}

func (c Config) profiles() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type state struct {
	config    Config
	logger    *slog.Logger
	telemetry telemetry.Telemetry
}

func (s *state) open(ctx context.Context, profile string) (database.DB, error) {
	opts, err := s.config.profile(profile)
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, opts, s.logger.With("profile", profile))
}

func (s *state) shutdown(ctx context.Context) error {
	return s.telemetry.Shutdown(ctx)
}

type stateKey struct{}

func withState(ctx context.Context, s *state) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

func stateFrom(ctx context.Context) *state {
	return ctx.Value(stateKey{}).(*state)
}
