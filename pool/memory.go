package pool

import (
	"log/slog"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// scaleCheckEvery controls how often returned checkouts trigger a scaling
// decision.
const scaleCheckEvery = 10

// MemoryAwarePool sizes itself from available memory at startup and grows,
// one browser at a time, when requests keep queueing and memory allows it.
type MemoryAwarePool struct {
	*queuePool

	readMemory    MemoryReader
	perBrowserMB  int
	lowMemoryMB   int
	waitThreshold time.Duration
}

// NewMemoryAwarePool builds a memory-aware pool. readMemory must not be nil.
func NewMemoryAwarePool(l Launcher, readMemory MemoryReader, minSize, maxSize, perBrowserMB, lowMemoryMB, recycleAfter int, waitThreshold time.Duration) *MemoryAwarePool {
	p := &MemoryAwarePool{
		queuePool:     newQueuePool(l, minSize, maxSize, recycleAfter),
		readMemory:    readMemory,
		perBrowserMB:  perBrowserMB,
		lowMemoryMB:   lowMemoryMB,
		waitThreshold: waitThreshold,
	}
	p.sizeFn = p.initialSize
	p.afterRelease = p.considerScaling
	return p
}

func (p *MemoryAwarePool) initialSize() int {
	avail := p.readMemory()
	size := OptimalPoolSize(avail, p.perBrowserMB, p.minSize, p.maxSize, p.lowMemoryMB)
	slog.Info("derived browser pool size from memory",
		"available_mb", avail, "per_browser_mb", p.perBrowserMB, "size", size)
	return size
}

// considerScaling runs after each returned checkout. Every scaleCheckEvery
// requests it looks at the recent average acquire wait; sustained queueing
// plus headroom for one more browser grows the pool by one.
func (p *MemoryAwarePool) considerScaling() {
	p.mu.Lock()
	due := p.totalRequests%scaleCheckEvery == 0
	slow := p.avgWaitLocked() > p.waitThreshold.Seconds()
	full := len(p.all) >= p.maxSize
	p.mu.Unlock()
	if !due || !slow || full {
		return
	}
	avail := p.readMemory()
	if avail < p.perBrowserMB {
		slog.Debug("pool under wait pressure but memory too tight to scale", "available_mb", avail)
		return
	}
	p.grow()
}

// Stats augments the shared snapshot with the current memory reading.
func (p *MemoryAwarePool) Stats() models.PoolStats {
	stats := p.queuePool.Stats()
	stats.AvailableMemoryMB = p.readMemory()
	return stats
}
