package pool

// OptimalPoolSize derives a browser count from available memory. Each
// browser is budgeted perBrowserMB; below lowMemoryMB the pool is forced to
// a single browser regardless of the configured minimum, otherwise the
// memory-derived count is clamped to [minSize, maxSize].
func OptimalPoolSize(availableMB, perBrowserMB, minSize, maxSize, lowMemoryMB int) int {
	if perBrowserMB <= 0 {
		perBrowserMB = 100
	}
	if minSize < 1 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	if availableMB < lowMemoryMB {
		return 1
	}
	size := availableMB / perBrowserMB
	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}
	return size
}
