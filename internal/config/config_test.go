package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pointerheat/internal/topology"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if cfg.Heatmap.ResolutionX != 120 || cfg.Heatmap.ResolutionY != 120 {
		t.Errorf("Expected 120x120 default resolution, got %dx%d", cfg.Heatmap.ResolutionX, cfg.Heatmap.ResolutionY)
	}
	fb := cfg.FallbackRegion()
	if fb == nil || fb.Width != 1920 || fb.Height != 1080 || fb.X != 0 || fb.Y != 0 {
		t.Errorf("Unexpected fallback region %+v", fb)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heatmap.ResolutionX = 0
	cfg.Capture.DataFile = ""
	cfg.Display.FallbackWidth = -1
	cfg.General.ToggleHotkey = "Ctrl+"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"resolution", "data file", "fallback size", "toggle hotkey"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

func TestValidateAcceptsHotkey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.ToggleHotkey = "Ctrl+Alt+H"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid hotkey, got %v", err)
	}
}

func TestFallbackDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.FallbackEnabled = false
	if cfg.FallbackRegion() != nil {
		t.Error("Expected no fallback region when disabled")
	}
}

func TestManagerLoadMissingUsesDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Get().General.APIPort != 18090 {
		t.Errorf("Expected default port, got %d", m.Get().General.APIPort)
	}
}

func TestManagerSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path)

	cfg := m.Get()
	cfg.Heatmap.ResolutionX = 64
	cfg.Heatmap.ResolutionY = 48
	cfg.Display.Regions = []topology.Region{{X: -217, Y: 982, Width: 1920, Height: 1080}}
	if err := m.Set(cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := NewManagerAt(path)
	changed := false
	other.RegisterChangeCallback(func() { changed = true })
	if err := other.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !changed {
		t.Error("Expected change callback on load")
	}

	got := other.Get()
	if got.Heatmap.ResolutionX != 64 || got.Heatmap.ResolutionY != 48 {
		t.Errorf("Expected 64x48, got %dx%d", got.Heatmap.ResolutionX, got.Heatmap.ResolutionY)
	}
	if len(got.Display.Regions) != 1 || got.Display.Regions[0].X != -217 {
		t.Errorf("Unexpected regions %+v", got.Display.Regions)
	}
}

func TestManagerLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"heatmap": {"resolution_x": -3}}`), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManagerAt(path)
	if err := m.Load(); err == nil {
		t.Error("Expected invalid config to be rejected")
	}
	if m.Get().Heatmap.ResolutionX != 120 {
		t.Error("Expected defaults to survive a rejected load")
	}
}

func TestManagerSetRejectsInvalid(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	cfg := m.Get()
	cfg.Heatmap.ResolutionY = 0
	if err := m.Set(cfg); err == nil {
		t.Error("Expected Set to reject invalid config")
	}
}

func TestDataPath(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(filepath.Join(dir, "config.json"))
	if got := m.DataPath(); got != filepath.Join(dir, "pointer_data.json") {
		t.Errorf("Expected data file in config dir, got %s", got)
	}

	abs := filepath.Join(dir, "elsewhere", "samples.json")
	cfg := m.Get()
	cfg.Capture.DataFile = abs
	m.Set(cfg)
	if got := m.DataPath(); got != abs {
		t.Errorf("Expected absolute data path %s, got %s", abs, got)
	}
}
