package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Pool      PoolConfig
	Cache     CacheConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless Chromium instances.
type BrowserConfig struct {
	// Headless controls whether browsers run headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockResources lists resource types dropped before they load
	// (Image, Stylesheet, Font, Media, Script). Price extraction reads the
	// DOM, so visual resources only cost memory.
	BlockResources []string // default: Image, Font, Media

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: true
}

// PoolConfig controls the browser provisioner.
type PoolConfig struct {
	// Strategy selects the provisioner: "fixed", "managed" or "memory".
	Strategy string // default: "memory"

	// MinBrowsers is the minimum number of pooled browser processes.
	MinBrowsers int // default: 1

	// MaxBrowsers is the hard ceiling on pooled browser processes.
	MaxBrowsers int // default: 4

	// PerBrowserMB is the memory budget assumed per browser process when
	// deriving the pool size from available memory.
	PerBrowserMB int // default: 100

	// LowMemoryMB is the hard threshold under which the pool is forced to
	// a single browser regardless of the sizing formula.
	LowMemoryMB int // default: 200

	// MemoryLimitMB caps total memory on constrained hosts. When > 0,
	// available memory is computed as limit minus the process tree's RSS
	// instead of reading system free memory. 0 disables the cap.
	MemoryLimitMB int // default: 0

	// RecycleAfterUses retires a browser process after this many checkouts,
	// bounding per-process memory growth from long-lived browser state.
	RecycleAfterUses int // default: 50

	// AcquireTimeout is how long a request waits for a free browser.
	AcquireTimeout time.Duration // default: 60s

	// ScaleWaitThreshold is the average checkout wait above which the
	// memory-aware pool considers launching another browser.
	ScaleWaitThreshold time.Duration // default: 2s
}

// CacheConfig controls the persistent price cache.
type CacheConfig struct {
	// Path is the badger database directory.
	Path string // default: "./data/pricecache"

	// TTL is the freshness window for cached prices.
	TTL time.Duration // default: 24h
}

// ScraperConfig controls scraping behavior.
type ScraperConfig struct {
	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 30s

	// SelectorTimeout bounds waits for result/price sections to render.
	SelectorTimeout time.Duration // default: 15s

	// SearchBaseURL is the storefront search endpoint.
	SearchBaseURL string // default: TCGPlayer Yu-Gi-Oh search
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("YGO_HOST", "0.0.0.0"),
			Port: envIntOr("YGO_PORT", 8080),
			Mode: envOr("YGO_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("YGO_HEADLESS", true),
			NoSandbox:      envBoolOr("YGO_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("YGO_BROWSER_BIN"),
			BlockResources: envSliceOr("YGO_BLOCK_RESOURCES", []string{"Image", "Font", "Media"}),
			BlockAds:       envBoolOr("YGO_BLOCK_ADS", true),
		},
		Pool: PoolConfig{
			Strategy:           envOr("YGO_POOL_STRATEGY", "memory"),
			MinBrowsers:        envIntOr("YGO_MIN_BROWSERS", 1),
			MaxBrowsers:        envIntOr("YGO_MAX_BROWSERS", 4),
			PerBrowserMB:       envIntOr("YGO_PER_BROWSER_MB", 100),
			LowMemoryMB:        envIntOr("YGO_LOW_MEMORY_MB", 200),
			MemoryLimitMB:      envIntOr("YGO_MEMORY_LIMIT_MB", 0),
			RecycleAfterUses:   envIntOr("YGO_RECYCLE_AFTER_USES", 50),
			AcquireTimeout:     envDurationOr("YGO_ACQUIRE_TIMEOUT", 60*time.Second),
			ScaleWaitThreshold: envDurationOr("YGO_SCALE_WAIT_THRESHOLD", 2*time.Second),
		},
		Cache: CacheConfig{
			Path: envOr("YGO_CACHE_PATH", "./data/pricecache"),
			TTL:  envDurationOr("YGO_CACHE_TTL", 24*time.Hour),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("YGO_NAV_TIMEOUT", 30*time.Second),
			SelectorTimeout:   envDurationOr("YGO_SELECTOR_TIMEOUT", 15*time.Second),
			SearchBaseURL:     envOr("YGO_SEARCH_BASE_URL", "https://www.tcgplayer.com/search/yugioh/product"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("YGO_AUTH_ENABLED", false),
			APIKeys: envSliceOr("YGO_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("YGO_RATE_RPS", 2.0),
			Burst:             envIntOr("YGO_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("YGO_LOG_LEVEL", "info"),
			Format: envOr("YGO_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
