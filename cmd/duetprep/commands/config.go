// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/config"
	"github.com/duetprep/duetprep/lib/dataset"
	"github.com/duetprep/duetprep/lib/tokenize"
)

// commonParams are the flags shared by every command that loads a
// configuration.
type commonParams struct {
	ConfigPath string
	Dataset    string
	LogLevel   string
	LogFormat  string
	Workers    int

	flagSet *pflag.FlagSet
}

// addFlags registers the shared flags and remembers flagSet so
// overrides apply only to flags the user set.
func (p *commonParams) addFlags(flagSet *pflag.FlagSet) {
	*p = commonParams{flagSet: flagSet}
	flagSet.StringVarP(&p.ConfigPath, "config", "c", "", "configuration file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&p.Dataset, "dataset", "", "dataset manifest")
	flagSet.StringVar(&p.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.StringVar(&p.LogFormat, "log-format", "", "log format: auto, text or json")
	flagSet.IntVar(&p.Workers, "workers", 0, "worker count (0 uses every CPU)")
}

func (p *commonParams) changed(name string) bool {
	return p.flagSet != nil && p.flagSet.Changed(name)
}

// loadConfig loads --config, then $DUETPREP_CONFIG, then the defaults,
// and applies the shared flag overrides.
func (p *commonParams) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case p.ConfigPath != "":
		cfg, err = config.LoadFile(p.ConfigPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.ExpandVariables()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if p.changed("dataset") {
		cfg.Dataset = p.Dataset
	}
	if p.changed("log-level") {
		cfg.Logging.Level = p.LogLevel
	}
	if p.changed("log-format") {
		cfg.Logging.Format = p.LogFormat
	}
	if p.changed("workers") {
		cfg.Parallel.Workers = p.Workers
	}
	return cfg, nil
}

// newLogger builds the command logger from the logging section.
func newLogger(cfg *config.Config, command string) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	return cli.NewCommandLogger(level, cfg.Logging.Format).With("command", command), nil
}

// loadInputs loads the dataset and builds the tokenizer a command
// reads text with.
func loadInputs(cfg *config.Config) (*dataset.Dataset, tokenize.Tokenizer, error) {
	if cfg.Dataset == "" {
		return nil, nil, fmt.Errorf("--dataset is required (or set dataset in the configuration file)")
	}
	tokenizer, err := cfg.BuildTokenizer()
	if err != nil {
		return nil, nil, err
	}
	data, err := dataset.Load(cfg.Dataset)
	if err != nil {
		return nil, nil, err
	}
	return data, tokenizer, nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
