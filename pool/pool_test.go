package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// --- fakes ---

type fakeLauncher struct {
	mu       sync.Mutex
	launched int
	failNext bool
}

func (f *fakeLauncher) Launch() (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return nil, errors.New("launch refused")
	}
	f.launched++
	return &fakeProcess{connected: true}, nil
}

func (f *fakeLauncher) launches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launched
}

type fakeProcess struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	contexts  int
}

func (p *fakeProcess) NewContext() (BrowsingContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contexts++
	return &fakeContext{}, nil
}

func (p *fakeProcess) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && !p.closed
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeContext struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeContext) NewPage() (Page, error) { return &fakePage{}, nil }

func (c *fakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakePage struct{}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }
func (p *fakePage) Eval(ctx context.Context, js string) (gson.JSON, error) {
	return gson.New(nil), nil
}
func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (p *fakePage) Screenshot() ([]byte, error) { return nil, nil }
func (p *fakePage) URL() string                 { return "" }
func (p *fakePage) Close() error                { return nil }

// --- sizing ---

func TestOptimalPoolSize(t *testing.T) {
	tests := []struct {
		name        string
		availableMB int
		want        int
	}{
		{"low memory forces single browser", 150, 1},
		{"just under threshold", 199, 1},
		{"at threshold uses formula", 200, 2},
		{"mid range", 350, 3},
		{"clamped to max", 1500, 4},
		{"clamped to min", 210, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OptimalPoolSize(tt.availableMB, 100, 2, 4, 200)
			if got != tt.want {
				t.Errorf("OptimalPoolSize(%d) = %d, want %d", tt.availableMB, got, tt.want)
			}
		})
	}
}

func TestOptimalPoolSizeDeterministic(t *testing.T) {
	first := OptimalPoolSize(512, 100, 1, 8, 200)
	for i := 0; i < 5; i++ {
		if got := OptimalPoolSize(512, 100, 1, 8, 200); got != first {
			t.Fatalf("sizing not deterministic: %d vs %d", got, first)
		}
	}
	if first != 5 {
		t.Fatalf("OptimalPoolSize(512) = %d, want 5", first)
	}
}

// --- fixed pool ---

func TestFixedPoolHandsOutUpToSize(t *testing.T) {
	fl := &fakeLauncher{}
	p := NewFixedPool(fl, 2, 50)
	defer p.Shutdown()

	ctx := context.Background()
	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := fl.launches(); got != 2 {
		t.Fatalf("launched %d browsers, want 2", got)
	}

	l1, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	l2, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	stats := p.Stats()
	if stats.Available != 0 || stats.PoolSize != 2 {
		t.Fatalf("stats = %+v, want 0 available of 2", stats)
	}

	// Third checkout must time out rather than oversubscribe a browser.
	_, err = p.AcquireContext(ctx, 20*time.Millisecond)
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeCapacityExceeded {
		t.Fatalf("third acquire = %v, want CAPACITY_EXCEEDED", err)
	}

	l1.Release()
	l2.Release()
	if got := p.Stats().Available; got != 2 {
		t.Fatalf("available after release = %d, want 2", got)
	}
}

func TestFixedPoolReleaseUnblocksWaiter(t *testing.T) {
	fl := &fakeLauncher{}
	p := NewFixedPool(fl, 1, 50)
	defer p.Shutdown()

	ctx := context.Background()
	lease, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		l, err := p.AcquireContext(ctx, 2*time.Second)
		if l != nil {
			l.Release()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	lease.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never unblocked after release")
	}
}

func TestFixedPoolReleaseIdempotent(t *testing.T) {
	p := NewFixedPool(&fakeLauncher{}, 1, 50)
	defer p.Shutdown()

	lease, err := p.AcquireContext(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lease.Release()
	lease.Release()

	if got := p.Stats().Available; got != 1 {
		t.Fatalf("double release inflated availability: %d", got)
	}
}

func TestFixedPoolRecyclesWornBrowsers(t *testing.T) {
	fl := &fakeLauncher{}
	p := NewFixedPool(fl, 1, 2)
	defer p.Shutdown()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		lease, err := p.AcquireContext(ctx, time.Second)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		lease.Release()
	}

	// Two uses hit the recycle threshold, so a replacement launch happened.
	if got := fl.launches(); got != 2 {
		t.Fatalf("launches = %d, want 2 (initial + recycle)", got)
	}
	if got := p.Stats().PoolSize; got != 1 {
		t.Fatalf("pool size after recycle = %d, want 1", got)
	}
}

func TestFixedPoolReplacesDisconnectedBrowser(t *testing.T) {
	fl := &fakeLauncher{}
	p := NewFixedPool(fl, 1, 50)
	defer p.Shutdown()

	ctx := context.Background()
	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Kill the pooled process behind the pool's back.
	p.mu.Lock()
	for _, h := range p.all {
		h.proc.(*fakeProcess).connected = false
	}
	p.mu.Unlock()

	lease, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("acquire after disconnect: %v", err)
	}
	defer lease.Release()

	if got := fl.launches(); got != 2 {
		t.Fatalf("launches = %d, want 2 (initial + replacement)", got)
	}
}

func TestFixedPoolInitializeFailsWhenFirstLaunchFails(t *testing.T) {
	p := NewFixedPool(&fakeLauncher{failNext: true}, 2, 50)
	err := p.Initialize(context.Background())
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeBrowserLaunch {
		t.Fatalf("Initialize = %v, want BROWSER_LAUNCH_FAILED", err)
	}
}

// --- memory-aware pool ---

func TestMemoryAwarePoolInitialSizeFromMemory(t *testing.T) {
	tests := []struct {
		name     string
		memoryMB int
		wantSize int
	}{
		{"low memory forces one", 150, 1},
		{"plenty of memory hits max", 900, 4},
		{"mid memory", 250, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := &fakeLauncher{}
			p := NewMemoryAwarePool(fl, func() int { return tt.memoryMB }, 1, 4, 100, 200, 50, 2*time.Second)
			defer p.Shutdown()
			if err := p.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			if got := p.Stats().PoolSize; got != tt.wantSize {
				t.Errorf("pool size = %d, want %d", got, tt.wantSize)
			}
		})
	}
}

func TestMemoryAwarePoolScalesUpUnderWaitPressure(t *testing.T) {
	fl := &fakeLauncher{}
	var calls int
	// First reading sizes the pool to one browser; later readings report
	// enough headroom for scaling.
	readMemory := func() int {
		calls++
		if calls == 1 {
			return 150
		}
		return 1000
	}
	// Zero wait threshold makes any recorded wait count as pressure.
	p := NewMemoryAwarePool(fl, readMemory, 1, 2, 100, 200, 50, 0)
	defer p.Shutdown()

	ctx := context.Background()
	for i := 0; i < scaleCheckEvery; i++ {
		lease, err := p.AcquireContext(ctx, time.Second)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		lease.Release()
	}

	if got := p.Stats().PoolSize; got != 2 {
		t.Fatalf("pool size after sustained waits = %d, want 2", got)
	}
}

func TestMemoryAwarePoolStatsReportMemory(t *testing.T) {
	p := NewMemoryAwarePool(&fakeLauncher{}, func() int { return 321 }, 1, 4, 100, 200, 50, 2*time.Second)
	defer p.Shutdown()
	if got := p.Stats().AvailableMemoryMB; got != 321 {
		t.Fatalf("AvailableMemoryMB = %d, want 321", got)
	}
}

// --- managed pool ---

func TestManagedPoolLaunchesPerCheckout(t *testing.T) {
	fl := &fakeLauncher{}
	p := NewManagedPool(fl, 2)
	defer p.Shutdown()

	ctx := context.Background()
	l1, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	l2, err := p.AcquireContext(ctx, time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	_, err = p.AcquireContext(ctx, 20*time.Millisecond)
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeCapacityExceeded {
		t.Fatalf("over-capacity acquire = %v, want CAPACITY_EXCEEDED", err)
	}

	l1.Release()
	l2.Release()

	// One probe launch at Initialize plus one per checkout.
	if got := fl.launches(); got != 3 {
		t.Fatalf("launches = %d, want 3", got)
	}
	if got := p.Stats().PoolSize; got != 0 {
		t.Fatalf("active after releases = %d, want 0", got)
	}
}
