package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/partyroom-backend/internal/config"
	"github.com/DoyleJ11/partyroom-backend/internal/httpapi"
	"github.com/DoyleJ11/partyroom-backend/internal/hub"
	"github.com/DoyleJ11/partyroom-backend/internal/logging"
	"github.com/DoyleJ11/partyroom-backend/internal/store"
	"github.com/DoyleJ11/partyroom-backend/internal/ws"
)

const (
	releaseVersion = "0.1.0"

	journalBuffer   = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, releaseVersion, run).Execute())
}

func run(parent context.Context, cfg *config.Config) (err error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The journal outlives the HTTP side so closing rooms still get recorded.
	var recorder store.Recorder = store.Nop{}
	var journals errgroup.Group
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()

	if cfg.DatabaseURL != "" {
		journal, openErr := store.OpenJournal(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, journal.Close()) }()

		async := store.NewAsync(journal, journalBuffer, log.Named("journal"))
		recorder = async
		journals.Go(func() error { return async.Run(journalCtx) })
		log.Info("session journal enabled")
	}
	defer func() {
		stopJournal()
		err = multierr.Append(err, journals.Wait())
	}()

	joinURL := cfg.JoinBaseURL()

	h := hub.NewHub(context.Background(), hub.Options{
		Rules:        cfg.Rules(),
		TickInterval: time.Second,
		Logger:       log,
		Recorder:     recorder,
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub: h,
			WS: ws.Options{
				IdentifyTimeout: cfg.IdentifyTimeout,
				WriteTimeout:    cfg.WriteTimeout,
				IdleTimeout:     cfg.IdleTimeout,
				OutboxSize:      cfg.OutboxSize,
				OriginPatterns:  cfg.OriginPatterns,
				Logger:          log,
				Tracker:         ws.NewTracker(),
			},
			JoinBaseURL: joinURL,
			Logger:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		joinField := zap.String("join_url", joinURL)
		if joinURL == "" {
			joinField = zap.String("join_url", "derived from request host")
		}
		log.Info("listening", zap.String("addr", srv.Addr), joinField)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Rooms go first so every client sees roomClosed before the listener stops.
		return multierr.Combine(
			h.Shutdown(shutdownCtx),
			srv.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}
