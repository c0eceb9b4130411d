package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultsWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := Load()
	if cfg.APIURL == "" || cfg.DurationSec <= 0 || cfg.PlayRate <= 0 {
		t.Fatalf("missing config should yield defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Default()
	cfg.OrgUID = "org-42"
	cfg.MachineID = "mach-7"
	cfg.TreeView = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := filepath.Join(dir, "xrewind", "config.json")
	if Path() != want {
		t.Fatalf("Path() = %q, want %q", Path(), want)
	}

	got := Load()
	if got.OrgUID != "org-42" || got.MachineID != "mach-7" || !got.TreeView {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}
