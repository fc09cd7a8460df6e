package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// ManagedPool launches a fresh browser per checkout and tears it down on
// release, bounding concurrency with a semaphore. It trades launch latency
// for a minimal resting footprint, suited to hosts that reclaim idle memory.
type ManagedPool struct {
	launcher      Launcher
	maxConcurrent int

	sem chan struct{}

	mu            sync.Mutex
	initialized   bool
	closed        bool
	active        int
	totalRequests int64
	waits         []time.Duration
}

// NewManagedPool builds a launch-per-checkout pool allowing maxConcurrent
// simultaneous browsers.
func NewManagedPool(l Launcher, maxConcurrent int) *ManagedPool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ManagedPool{
		launcher:      l,
		maxConcurrent: maxConcurrent,
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// Initialize verifies a browser can launch at all, then discards it. Later
// checkouts launch on demand.
func (p *ManagedPool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if p.closed {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "pool is shut down", nil)
	}
	proc, err := p.launcher.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch probe browser", err)
	}
	if cerr := proc.Close(); cerr != nil {
		slog.Warn("closing probe browser failed", "error", cerr)
	}
	p.initialized = true
	return nil
}

func (p *ManagedPool) AcquireContext(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p.sem <- struct{}{}:
	case <-timer.C:
		p.recordWait(time.Since(start))
		return nil, models.NewScrapeError(models.ErrCodeCapacityExceeded,
			"no browser slot became available within the acquire timeout", nil)
	case <-ctx.Done():
		return nil, models.NewScrapeError(models.ErrCodeCapacityExceeded,
			"request canceled while waiting for a browser slot", ctx.Err())
	}
	p.recordWait(time.Since(start))

	proc, err := p.launcher.Launch()
	if err != nil {
		<-p.sem
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	bctx, err := proc.NewContext()
	if err != nil {
		if cerr := proc.Close(); cerr != nil {
			slog.Warn("closing browser after context failure", "error", cerr)
		}
		<-p.sem
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch,
			"failed to open an isolated browsing context", err)
	}

	p.mu.Lock()
	p.active++
	p.totalRequests++
	p.mu.Unlock()

	lease := &Lease{bctx: bctx}
	lease.release = func() {
		if cerr := bctx.Close(); cerr != nil {
			slog.Warn("closing browsing context failed", "error", cerr)
		}
		if cerr := proc.Close(); cerr != nil {
			slog.Warn("closing browser process failed", "error", cerr)
		}
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		<-p.sem
	}
	return lease, nil
}

func (p *ManagedPool) recordWait(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, d)
	if len(p.waits) > waitWindow {
		p.waits = p.waits[len(p.waits)-waitWindow:]
	}
}

func (p *ManagedPool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var avg float64
	if len(p.waits) > 0 {
		var total time.Duration
		for _, d := range p.waits {
			total += d
		}
		avg = total.Seconds() / float64(len(p.waits))
	}
	return models.PoolStats{
		Initialized:   p.initialized,
		PoolSize:      p.active,
		Available:     p.maxConcurrent - p.active,
		MaxSize:       p.maxConcurrent,
		TotalRequests: p.totalRequests,
		AvgWaitTime:   avg,
	}
}

// Shutdown stops admitting new checkouts. In-flight browsers are closed by
// their own releases.
func (p *ManagedPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.initialized = false
	p.mu.Unlock()
}
