package serialize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.toml")
	body := `
cache_memory_percent = 99.0
reserve_system_memory_gb = 0.1
cache_strategy = "Hoard"
compositor_backend = "Vulkan"
preload_radius = 1000
fps_base = 500.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheMemoryPercent != 95 {
		t.Errorf("CacheMemoryPercent = %v, want 95", cfg.CacheMemoryPercent)
	}
	if cfg.ReserveSystemMemoryGB != 0.5 {
		t.Errorf("ReserveSystemMemoryGB = %v, want 0.5", cfg.ReserveSystemMemoryGB)
	}
	if cfg.CacheStrategy != "KeepAll" {
		t.Errorf("CacheStrategy = %q, want KeepAll", cfg.CacheStrategy)
	}
	if cfg.CompositorBackend != "Cpu" {
		t.Errorf("CompositorBackend = %q, want Cpu", cfg.CompositorBackend)
	}
	if cfg.PreloadRadius != 256 {
		t.Errorf("PreloadRadius = %v, want 256", cfg.PreloadRadius)
	}
	if cfg.FPSBase != 120 {
		t.Errorf("FPSBase = %v, want 120", cfg.FPSBase)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.toml")
	want := Config{
		CacheMemoryPercent:    50,
		ReserveSystemMemoryGB: 4,
		CacheStrategy:         "LastOnly",
		CompositorBackend:     "Gpu",
		PreloadRadius:         32,
		FPSBase:               30,
	}
	if err := SaveConfig(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
