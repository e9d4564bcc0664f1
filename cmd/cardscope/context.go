package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"gorm.io/gorm"

	"cardscope/pkg/config"
	"cardscope/pkg/database"
	"cardscope/pkg/logging"
	"cardscope/pkg/recognition"
	"cardscope/process/watcher"
)

// buildScanner constructs the recognition pipeline; tests replace it.
var buildScanner = func(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (watcher.Scanner, error) {
	s, err := recognition.Build(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger writes to w at the configured level, or debug with --verbose.
func (c *commandContext) logger(w io.Writer) *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	level := cfg.Log.Level
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format, w)
	if err != nil {
		logger, _ = logging.New(level, "text", w)
	}
	return logger
}

// ensureDB opens the configured database once per invocation and applies
// migrations when auto_migrate is on.
func (c *commandContext) ensureDB(ctx context.Context, logger *slog.Logger) (*gorm.DB, error) {
	c.dbOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.dbErr = err
			return
		}
		gdb, err := database.Open(cfg.Database.DSN)
		if err != nil {
			c.dbErr = err
			return
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(gdb.WithContext(ctx), logger); err != nil {
				logger.Warn("auto-migrate incomplete", "error", err)
			}
		}
		c.db = gdb
	})
	return c.db, c.dbErr
}
