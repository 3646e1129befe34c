// Package worker runs the automatic monthly rollover for every stored user
// outside of an interactive session.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alice/internal/log"
	"alice/internal/services"
	"alice/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the rollover worker
type Config struct {
	// Interval is how often every user is checked (default: 1h)
	Interval time.Duration

	// Concurrency is the max number of users processed at once (default: 4)
	Concurrency int

	// Now is the clock used for each pass (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:    time.Hour,
		Concurrency: 4,
		Now:         time.Now,
	}
}

// RolloverWorker periodically applies the session-start rollover to every
// user. A user already processed this month costs one marker read.
type RolloverWorker struct {
	engine *services.RolloverEngine
	store  storage.Store
	config Config
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRolloverWorker(engine *services.RolloverEngine, store storage.Store, config Config, logger *log.Logger) *RolloverWorker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Concurrency < 1 {
		config.Concurrency = def.Concurrency
	}
	if config.Now == nil {
		config.Now = def.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &RolloverWorker{
		engine: engine,
		store:  store,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// PassResult summarizes one pass over all users.
type PassResult struct {
	Users   int
	Changed int
	// Skipped counts the user left to the live server session.
	Skipped int
	Failed  int
}

// RunOnce processes every user concurrently, bounded by Concurrency. A failing
// user is logged and counted; it does not cancel the others.
func (w *RolloverWorker) RunOnce(ctx context.Context, now time.Time) (PassResult, error) {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("list users: %w", err)
	}

	var changed, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, u := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := w.engine.OnSessionStart(gctx, u.Email, now)
			if errors.Is(err, services.ErrLiveSession) {
				skipped.Add(1)
				return nil
			}
			if err != nil {
				failed.Add(1)
				w.logger.ErrorContext(gctx, "Rollover failed for user", log.FieldEmail, u.Email, log.FieldError, err)
				return nil
			}
			if res.Changed() {
				changed.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return PassResult{
		Users:   len(users),
		Changed: int(changed.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, err
}

// Start begins the processing loop. Returns an error if already running.
func (w *RolloverWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("rollover worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Rollover worker started",
		"interval", w.config.Interval.String(),
		"concurrency", w.config.Concurrency)
	return nil
}

// Stop gracefully stops the worker and waits for the current pass.
func (w *RolloverWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.InfoContext(ctx, "Rollover worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Rollover worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RolloverWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *RolloverWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	// Cancel the in-flight pass when Stop is called.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	w.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *RolloverWorker) pass(ctx context.Context) {
	now := w.config.Now()
	start := time.Now()
	res, err := w.RunOnce(ctx, now)
	if err != nil {
		w.logger.ErrorContext(ctx, "Rollover pass failed", log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Rollover pass complete",
		"users", res.Users,
		"changed", res.Changed,
		"skipped", res.Skipped,
		"failed", res.Failed,
		log.FieldDuration, time.Since(start).Milliseconds(),
		"next_check", now.Add(w.config.Interval).Format("15:04:05"))
}
