package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shapedtime/hoarderwatch/internal/pvr"
)

// Runner refreshes the catalog on an interval and feeds it to the verifier.
type Runner struct {
	catalog  pvr.Catalog
	service  Service
	interval time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	stopped  bool
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewRunner creates a background pass runner. interval <= 0 disables the
// loop; RunOnce still works for manually triggered passes.
func NewRunner(catalog pvr.Catalog, service Service, interval time.Duration) *Runner {
	return &Runner{
		catalog:  catalog,
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
		log:      slog.With("component", "verify-runner"),
	}
}

// Start launches the periodic pass loop. The first pass runs immediately.
func (r *Runner) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("background verification disabled")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("initial verification pass failed", "error", err)
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil {
					r.log.Warn("verification pass failed", "error", err)
				}
			}
		}
	}()

	r.log.Info("background verification started", "interval", r.interval)
}

// RunOnce lists completed recordings and runs a single verification pass.
func (r *Runner) RunOnce(ctx context.Context) (PassStats, error) {
	recordings, err := r.catalog.ListCompletedRecordings(ctx)
	if err != nil {
		return PassStats{}, fmt.Errorf("failed to list recordings: %w", err)
	}
	return r.service.RunPass(ctx, recordings), nil
}

// Stop terminates the loop and waits for an in-flight pass to wind down.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stopChan)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
