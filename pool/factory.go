package pool

import (
	"fmt"

	"github.com/jacostaf/tcg-ygoripper-sub000/config"
)

// New builds the provisioner named by cfg.Strategy around the given
// launcher. Unknown strategies are rejected rather than silently defaulted.
func New(cfg config.PoolConfig, l Launcher) (BrowserProvisioner, error) {
	switch cfg.Strategy {
	case "fixed":
		return NewFixedPool(l, cfg.MaxBrowsers, cfg.RecycleAfterUses), nil
	case "managed":
		return NewManagedPool(l, cfg.MaxBrowsers), nil
	case "memory", "":
		return NewMemoryAwarePool(
			l,
			SystemMemoryReader(cfg.MemoryLimitMB),
			cfg.MinBrowsers,
			cfg.MaxBrowsers,
			cfg.PerBrowserMB,
			cfg.LowMemoryMB,
			cfg.RecycleAfterUses,
			cfg.ScaleWaitThreshold,
		), nil
	default:
		return nil, fmt.Errorf("unknown pool strategy %q", cfg.Strategy)
	}
}
