// Package pool provisions headless-browser processes and loans out isolated
// browsing contexts under a memory budget. Three interchangeable strategies
// implement BrowserProvisioner: a fixed-size pool, a semaphore-managed
// launcher, and a memory-aware scaling pool.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// BrowserProvisioner hands out exclusive browsing contexts. A checkout maps
// to exactly one underlying browser process for its duration; the same
// process is never loaned to two in-flight requests at once.
type BrowserProvisioner interface {
	// Initialize launches the initial browser processes. Idempotent; safe
	// for concurrent callers. Fails only when the very first launch fails.
	Initialize(ctx context.Context) error

	// AcquireContext waits up to timeout for a free browser, opens a fresh
	// isolated browsing context on it and returns a Lease. The returned
	// error carries models.ErrCodeCapacityExceeded when no browser frees up
	// in time.
	AcquireContext(ctx context.Context, timeout time.Duration) (*Lease, error)

	// Stats returns a snapshot of the provisioner's state.
	Stats() models.PoolStats

	// Shutdown closes all browser processes, tolerating individual close
	// failures.
	Shutdown()
}

// Launcher starts browser processes. The production implementation drives
// rod/Chromium; tests substitute fakes.
type Launcher interface {
	Launch() (Process, error)
}

// Process is one running browser process.
type Process interface {
	// NewContext opens an isolated browsing context (own cookies/storage).
	NewContext() (BrowsingContext, error)

	// Connected reports whether the process still answers.
	Connected() bool

	// Close terminates the process.
	Close() error
}

// BrowsingContext is an isolated browsing session carved from a process.
type BrowsingContext interface {
	NewPage() (Page, error)
	Close() error
}

// Page is one tab inside a browsing context.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Eval(ctx context.Context, js string) (gson.JSON, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot() ([]byte, error)
	URL() string
	Close() error
}

// Lease is a checked-out browsing context. Release closes the context and
// returns the underlying browser to its pool; it is safe to call more than
// once and must be called on every exit path.
type Lease struct {
	bctx    BrowsingContext
	release func()
	once    sync.Once
}

// NewLease wraps an already-acquired browsing context with a release
// callback. Provisioner implementations and test doubles build leases with
// it.
func NewLease(bctx BrowsingContext, release func()) *Lease {
	return &Lease{bctx: bctx, release: release}
}

// Context returns the leased browsing context.
func (l *Lease) Context() BrowsingContext { return l.bctx }

// Release closes the context and returns the browser. Idempotent.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// handle tracks one pooled browser process.
type handle struct {
	id       int64
	proc     Process
	useCount int
}
