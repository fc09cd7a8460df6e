package pool

// FixedPool launches a fixed number of browsers up front and keeps them for
// the life of the service, recycling individual processes as they wear out.
type FixedPool struct {
	*queuePool
}

// NewFixedPool builds a pool of exactly size browsers.
func NewFixedPool(l Launcher, size, recycleAfter int) *FixedPool {
	return &FixedPool{queuePool: newQueuePool(l, size, size, recycleAfter)}
}
