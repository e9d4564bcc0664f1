package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"cardscope/pkg/config"
	"cardscope/pkg/logging"
	"cardscope/pkg/recognition"
)

var jwtSecret []byte // from config; falls back to a development default

var appConfig = config.Default()

func main() {
	fs := ff.NewFlagSet("cardscope-server")
	var (
		configPath = fs.StringLong("config", "", "path to a YAML config file")
		addr       = fs.StringLong("addr", "", "listen address (overrides server.addr)")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("CARDSCOPE")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	appConfig = cfg
	jwtSecret = []byte(cfg.Auth.JWTSecret)
	if cfg.UsingDevSecret() {
		slog.Warn("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// `cardscope-server migrate` runs migrations and seeding, then exits.
	if args := fs.GetArgs(); len(args) > 0 && args[0] == "migrate" {
		if err := initDB(ctx, cfg, true); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("migration and seeding completed")
		return
	}

	if err := initDB(ctx, cfg, cfg.Database.AutoMigrate); err != nil {
		slog.Error("database init failed", "error", err)
		os.Exit(1)
	}

	s, err := recognition.Build(ctx, cfg, db, logger)
	if err != nil {
		slog.Error("build scanner", "error", err)
		os.Exit(1)
	}
	scanner = s

	r := gin.Default()
	setupRoutes(r)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("listening", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
