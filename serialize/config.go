package serialize

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Config holds the engine's enumerated settings. Out-of-range values are
// clamped on load with a logged warning rather than rejected, so a stale
// config file never prevents startup.
type Config struct {
	CacheMemoryPercent    float64 `toml:"cache_memory_percent"`
	ReserveSystemMemoryGB float64 `toml:"reserve_system_memory_gb"`
	CacheStrategy         string  `toml:"cache_strategy"`
	CompositorBackend     string  `toml:"compositor_backend"`
	PreloadRadius         int     `toml:"preload_radius"`
	FPSBase               float64 `toml:"fps_base"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CacheMemoryPercent:    75,
		ReserveSystemMemoryGB: 2.0,
		CacheStrategy:         "KeepAll",
		CompositorBackend:     "Cpu",
		PreloadRadius:         10,
		FPSBase:               24,
	}
}

// LoadConfig reads a TOML config file, filling omitted keys with defaults
// and clamping out-of-range values. A missing file yields the defaults
// without error; a malformed file is an error.
func LoadConfig(path string, log *logrus.Entry) (Config, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("serialize: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("serialize: parse config %s: %w", path, err)
	}
	return cfg.clamped(log), nil
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialize: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("serialize: write config %s: %w", path, err)
	}
	return nil
}

func (c Config) clamped(log *logrus.Entry) Config {
	clampF := func(name string, v, lo, hi float64) float64 {
		if v < lo || v > hi {
			clamped := v
			if clamped < lo {
				clamped = lo
			}
			if clamped > hi {
				clamped = hi
			}
			log.WithFields(logrus.Fields{"key": name, "value": v, "clamped": clamped}).
				Warn("config value out of range")
			return clamped
		}
		return v
	}

	c.CacheMemoryPercent = clampF("cache_memory_percent", c.CacheMemoryPercent, 25, 95)
	c.ReserveSystemMemoryGB = clampF("reserve_system_memory_gb", c.ReserveSystemMemoryGB, 0.5, 8.0)
	c.PreloadRadius = int(clampF("preload_radius", float64(c.PreloadRadius), 1, 256))
	c.FPSBase = clampF("fps_base", c.FPSBase, 1, 120)

	switch c.CacheStrategy {
	case "KeepAll", "LastOnly":
	default:
		log.WithField("value", c.CacheStrategy).Warn("unknown cache_strategy; using KeepAll")
		c.CacheStrategy = "KeepAll"
	}
	switch c.CompositorBackend {
	case "Cpu", "Gpu":
	default:
		log.WithField("value", c.CompositorBackend).Warn("unknown compositor_backend; using Cpu")
		c.CompositorBackend = "Cpu"
	}
	return c
}
