package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/config"
	"github.com/meikuraledutech/workflow/execution"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/meikuraledutech/workflow/remote"
	"github.com/meikuraledutech/workflow/session"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags := pflag.NewFlagSet("workflow", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the editor and serves the HTTP API until ctx is done.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	client := remote.New(cfg.RemoteURL,
		remote.WithTimeout(cfg.RemoteTimeout),
		remote.WithLogger(log),
	)

	var (
		runs    workflow.RunStore
		storage session.Storage = session.NewMemoryStorage()
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.CreateSchema(ctx); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		runs, storage = pg, pg
		log.Info("run history enabled")
	}

	sel := graph.NewSelection()
	store := graph.New(sel)

	coordOpts := []execution.Option{execution.WithLogger(log)}
	if runs != nil {
		coordOpts = append(coordOpts, execution.WithRunStore(runs))
	}

	app := newApp(&api{
		store:       store,
		selection:   sel,
		coordinator: execution.New(store, sel, client, coordOpts...),
		uploader:    execution.NewUploader(store, client, log),
		sessions: session.NewManager(storage,
			session.Credentials{Identifier: cfg.AuthIdentifier, Secret: cfg.AuthSecret},
			session.WithTTL(cfg.SessionTTL),
			session.WithLogger(log),
		),
		runs:        runs,
		remote:      client,
		logger:      log,
		accessLog:   accessLogWriter(cfg.LogLevel),
		corsOrigins: cfg.CORSOrigins,
	})

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("listening", "addr", cfg.ListenAddr, "remote", client.BaseURL())
		return app.Listen(cfg.ListenAddr, fiber.ListenConfig{DisableStartupMessage: true})
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// accessLogWriter keeps request logs out of warn and error level output.
func accessLogWriter(level string) io.Writer {
	switch level {
	case "warn", "error":
		return io.Discard
	default:
		return os.Stdout
	}
}
