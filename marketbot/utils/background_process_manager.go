package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BackgroundProcessManager owns the bot's long-running loops, such as the
// deadline sweep and draft expiry, and stops them together on shutdown.
type BackgroundProcessManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	processes map[string]*process
}

type process struct {
	description string
	cancel      context.CancelFunc
}

func NewBackgroundProcessManager(parent context.Context) *BackgroundProcessManager {
	ctx, cancel := context.WithCancel(parent)
	return &BackgroundProcessManager{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]*process),
	}
}

// StartProcess runs fn in its own goroutine until fn returns or the manager
// shuts down. Starting a name that is already running replaces the old one.
func (bpm *BackgroundProcessManager) StartProcess(name, description string, fn func(ctx context.Context)) {
	bpm.mu.Lock()
	if old, exists := bpm.processes[name]; exists {
		slog.Warn("Replacing background process",
			slog.String("type", "sys"),
			slog.String("process", name))
		old.cancel()
	}
	ctx, cancel := context.WithCancel(bpm.ctx)
	p := &process{description: description, cancel: cancel}
	bpm.processes[name] = p
	bpm.mu.Unlock()

	bpm.wg.Add(1)
	go func() {
		defer bpm.wg.Done()
		defer bpm.forget(name, p)

		slog.Info("Starting background process",
			slog.String("type", "sys"),
			slog.String("process", name),
			slog.String("description", description))

		guard(name, func() { fn(ctx) })

		slog.Info("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name))
	}()
}

// StartTicker runs fn once immediately and then every interval. A panic in
// one tick is logged and the loop keeps going.
func (bpm *BackgroundProcessManager) StartTicker(name, description string, interval time.Duration, fn func(ctx context.Context)) {
	bpm.StartProcess(name, description, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			start := time.Now()
			guard(name, func() { fn(ctx) })
			if took := time.Since(start); took > interval {
				slog.Warn("Background tick overran its interval",
					slog.String("type", "sys"),
					slog.String("process", name),
					slog.Duration("took", took),
					slog.Duration("interval", interval))
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	})
}

func guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Background process panic",
				slog.String("type", "sys"),
				slog.String("process", name),
				slog.Any("panic", r))
		}
	}()
	fn()
}

func (bpm *BackgroundProcessManager) forget(name string, p *process) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	p.cancel()
	if bpm.processes[name] == p {
		delete(bpm.processes, name)
	}
}

// Shutdown cancels every process and waits for them up to timeout.
func (bpm *BackgroundProcessManager) Shutdown(timeout time.Duration) error {
	slog.Info("Shutting down background processes",
		slog.String("type", "sys"),
		slog.Int("process_count", bpm.GetProcessCount()))

	bpm.cancel()

	done := make(chan struct{})
	go func() {
		bpm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background processes stopped", slog.String("type", "sys"))
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (bpm *BackgroundProcessManager) GetProcessCount() int {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	return len(bpm.processes)
}
