package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type config struct {
	Database struct {
		DSN           string `required:"true"`
		RunMigrations bool   `default:"false" split_words:"true"`
	}

	// Streams is the comma-separated list of Event Stream ids to reconcile.
	Streams []string `required:"true"`

	// SnapshotTypes is the comma-separated list of event types
	// to recognize as snapshots.
	SnapshotTypes []string `required:"true" split_words:"true"`

	Kafka struct {
		// Brokers is optional: pointer updates are published only if set.
		Brokers []string
		Topic   string `default:"snapshot-pointers"`
	}

	Log struct {
		Level       string `default:"info"`
		Development bool   `default:"false"`
	}
}

func parseConfig() (*config, error) {
	var config config

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("config: failed to parse from env, %w", err)
	}

	return &config, nil
}

func (c *config) newLogger() (*zap.Logger, error) {
	if c.Log.Development {
		return zap.NewDevelopment() //nolint:wrapcheck // Nothing to add.
	}

	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: invalid log level, %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level

	return cfg.Build() //nolint:wrapcheck // Nothing to add.
}
