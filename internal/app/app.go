// Package app runs the full stagecast process: the HTTP control server, the
// signal dispatch loop, and the show clock. Cancelling the run context stops
// every component and drains the HTTP server gracefully.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"stagecast/internal/broadcast"
	"stagecast/internal/server"
	"stagecast/internal/signal"
	"stagecast/internal/store"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown once the run context
// is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultClockInterval is how often the show clock re-renders elapsed time.
const DefaultClockInterval = time.Second

// Config wires the runtime components. Store and Server are required; Queue
// may be nil for deployments that dispatch actions over HTTP only.
type Config struct {
	Store           *store.Store
	Server          *server.Server
	Queue           signal.Queue
	Translator      signal.Translator
	Logger          *slog.Logger
	ClockInterval   time.Duration
	ShutdownTimeout time.Duration
	Ready           chan<- struct{}
}

// App owns the process lifecycle.
type App struct {
	store           *store.Store
	server          *server.Server
	queue           signal.Queue
	translator      signal.Translator
	logger          *slog.Logger
	clockInterval   time.Duration
	shutdownTimeout time.Duration
	ready           chan<- struct{}
}

// New validates the configuration and applies defaults.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Server == nil {
		return nil, fmt.Errorf("server is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clockInterval := cfg.ClockInterval
	if clockInterval <= 0 {
		clockInterval = DefaultClockInterval
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &App{
		store:           cfg.Store,
		server:          cfg.Server,
		queue:           cfg.Queue,
		translator:      cfg.Translator,
		logger:          logger,
		clockInterval:   clockInterval,
		shutdownTimeout: shutdownTimeout,
		ready:           cfg.Ready,
	}, nil
}

// Run blocks until the context is cancelled or a component fails. A context
// cancellation produces a graceful shutdown and a nil error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.server.Start()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.queue != nil {
		g.Go(func() error {
			return a.dispatchLoop(ctx)
		})
	}

	g.Go(func() error {
		return a.clockLoop(ctx)
	})

	if a.ready != nil {
		close(a.ready)
	}

	return g.Wait()
}

// dispatchLoop translates queued signals into reducer actions. Translation
// and dispatch failures are logged and skipped so one bad signal cannot stop
// the stream.
func (a *App) dispatchLoop(ctx context.Context) error {
	sub := a.queue.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			for _, action := range a.translator.Translate(event) {
				if _, err := a.store.Dispatch(ctx, action); err != nil {
					a.logger.Error("signal dispatch failed",
						"signal", string(event.Type),
						"kind", string(action.Kind()),
						"error", err)
				}
			}
		}
	}
}

// clockLoop re-renders the elapsed-time display once per interval while the
// event is live and the show clock has started.
func (a *App) clockLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.clockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot := a.store.Snapshot()
			if snapshot.State.Status() != broadcast.StatusLive {
				continue
			}
			event := snapshot.State.Event
			if event == nil || event.ShowStartedAt == nil {
				continue
			}
			elapsed := broadcast.FormatElapsed(time.Since(*event.ShowStartedAt))
			if elapsed == snapshot.State.ElapsedTime {
				continue
			}
			if _, err := a.store.Dispatch(ctx, broadcast.SetElapsedTime{ElapsedTime: elapsed}); err != nil {
				a.logger.Error("clock dispatch failed", "error", err)
			}
		}
	}
}
