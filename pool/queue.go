package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

const waitWindow = 10

// queuePool keeps launched browser processes on an idle channel and loans
// them out one checkout at a time. FixedPool and MemoryAwarePool both build
// on it; the memory-aware strategy adds sizing and scaling through the
// sizeFn and afterRelease hooks.
type queuePool struct {
	launcher     Launcher
	minSize      int
	maxSize      int
	recycleAfter int

	// sizeFn decides the initial pool size. nil means maxSize.
	sizeFn func() int
	// afterRelease runs after every handle return, outside mu. The
	// memory-aware pool uses it to consider scaling up.
	afterRelease func()

	mu          sync.Mutex
	initialized bool
	closed      bool
	all         map[int64]*handle
	nextID      int64

	idle chan *handle

	totalRequests int64
	waits         []time.Duration // last waitWindow acquire waits
}

func newQueuePool(l Launcher, minSize, maxSize, recycleAfter int) *queuePool {
	if minSize < 1 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	return &queuePool{
		launcher:     l,
		minSize:      minSize,
		maxSize:      maxSize,
		recycleAfter: recycleAfter,
		all:          make(map[int64]*handle),
		idle:         make(chan *handle, maxSize),
	}
}

func (p *queuePool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if p.closed {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "pool is shut down", nil)
	}

	size := p.maxSize
	if p.sizeFn != nil {
		size = p.sizeFn()
	}
	if size < 1 {
		size = 1
	}
	if size > p.maxSize {
		size = p.maxSize
	}

	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		h, err := p.launchLocked()
		if err != nil {
			if i == 0 {
				return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch initial browser", err)
			}
			slog.Warn("browser launch failed, continuing with smaller pool",
				"launched", i, "target", size, "error", err)
			break
		}
		p.idle <- h
	}
	p.initialized = true
	slog.Info("browser pool initialized", "size", len(p.all), "max_size", p.maxSize)
	return nil
}

// launchLocked starts one process and registers its handle. Caller holds mu.
func (p *queuePool) launchLocked() (*handle, error) {
	proc, err := p.launcher.Launch()
	if err != nil {
		return nil, err
	}
	p.nextID++
	h := &handle{id: p.nextID, proc: proc}
	p.all[h.id] = h
	return h, nil
}

func (p *queuePool) AcquireContext(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var h *handle
	select {
	case h = <-p.idle:
	case <-timer.C:
		p.recordWait(time.Since(start))
		return nil, models.NewScrapeError(models.ErrCodeCapacityExceeded,
			"no browser became available within the acquire timeout", nil)
	case <-ctx.Done():
		return nil, models.NewScrapeError(models.ErrCodeCapacityExceeded,
			"request canceled while waiting for a browser", ctx.Err())
	}
	p.recordWait(time.Since(start))

	if !h.proc.Connected() {
		slog.Warn("pooled browser lost its connection, replacing", "handle", h.id)
		h = p.replace(h)
		if h == nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch,
				"failed to replace a disconnected browser", nil)
		}
	}

	bctx, err := h.proc.NewContext()
	if err != nil {
		p.checkin(h)
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch,
			"failed to open an isolated browsing context", err)
	}

	lease := &Lease{bctx: bctx}
	lease.release = func() {
		if cerr := bctx.Close(); cerr != nil {
			slog.Warn("closing browsing context failed", "handle", h.id, "error", cerr)
		}
		p.checkin(h)
		if p.afterRelease != nil {
			p.afterRelease()
		}
	}
	return lease, nil
}

// checkin returns a handle to the idle queue, retiring it first when it has
// served enough checkouts or its process died.
func (p *queuePool) checkin(h *handle) {
	p.mu.Lock()
	if p.closed {
		p.destroyLocked(h)
		p.mu.Unlock()
		return
	}
	p.totalRequests++
	h.useCount++
	worn := h.useCount >= p.recycleAfter || !h.proc.Connected()
	if worn {
		p.destroyLocked(h)
		nh, err := p.launchLocked()
		if err != nil {
			slog.Error("failed to relaunch recycled browser", "error", err, "pool_size", len(p.all))
			p.mu.Unlock()
			return
		}
		slog.Debug("recycled browser", "retired", h.id, "replacement", nh.id, "uses", h.useCount)
		h = nh
	}
	p.mu.Unlock()
	p.idle <- h
}

// replace retires a dead handle and launches a fresh one, already checked
// out to the caller. Returns nil when the relaunch fails.
func (p *queuePool) replace(h *handle) *handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyLocked(h)
	nh, err := p.launchLocked()
	if err != nil {
		slog.Error("failed to relaunch browser", "error", err)
		return nil
	}
	return nh
}

// destroyLocked closes a handle's process and forgets it. Caller holds mu.
func (p *queuePool) destroyLocked(h *handle) {
	delete(p.all, h.id)
	if err := h.proc.Close(); err != nil {
		slog.Warn("closing browser process failed", "handle", h.id, "error", err)
	}
}

// grow launches one extra browser and parks it idle, respecting maxSize.
func (p *queuePool) grow() bool {
	p.mu.Lock()
	if p.closed || len(p.all) >= p.maxSize {
		p.mu.Unlock()
		return false
	}
	h, err := p.launchLocked()
	if err != nil {
		slog.Warn("scale-up launch failed", "error", err)
		p.mu.Unlock()
		return false
	}
	size := len(p.all)
	p.mu.Unlock()
	p.idle <- h
	slog.Info("scaled browser pool up", "size", size)
	return true
}

func (p *queuePool) recordWait(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, d)
	if len(p.waits) > waitWindow {
		p.waits = p.waits[len(p.waits)-waitWindow:]
	}
}

// avgWaitLocked averages the recent acquire waits in seconds. Caller holds mu.
func (p *queuePool) avgWaitLocked() float64 {
	if len(p.waits) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range p.waits {
		total += d
	}
	return total.Seconds() / float64(len(p.waits))
}

func (p *queuePool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		Initialized:   p.initialized,
		PoolSize:      len(p.all),
		Available:     len(p.idle),
		MaxSize:       p.maxSize,
		TotalRequests: p.totalRequests,
		AvgWaitTime:   p.avgWaitLocked(),
	}
}

func (p *queuePool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.initialized = false
	for _, h := range p.all {
		if err := h.proc.Close(); err != nil {
			slog.Warn("closing browser process failed", "handle", h.id, "error", err)
		}
	}
	p.all = make(map[int64]*handle)
	p.mu.Unlock()

	// Drain handles parked on the channel; their processes were already
	// closed above.
	for {
		select {
		case <-p.idle:
		default:
			return
		}
	}
}
