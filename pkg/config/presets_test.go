package config

import (
	"path/filepath"
	"testing"
)

func TestLoadPresetsMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadPresetsFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Find("Dense"); !ok {
		t.Error("built-in Dense preset missing")
	}
}

func TestPresetsRoundTripAndEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "presets.yaml")
	cfg := &Config{}
	cfg.Upsert(Preset{Name: "b", Parameters: map[string]interface{}{"num_drones": 5}})
	cfg.Upsert(Preset{Name: "a", Parameters: map[string]interface{}{"separation": 2.5}})
	cfg.Upsert(Preset{Name: "b", Parameters: map[string]interface{}{"num_drones": 7}})
	cfg.Selected = "a"

	if len(cfg.Presets) != 2 || cfg.Presets[0].Name != "a" {
		t.Fatalf("presets = %+v", cfg.Presets)
	}
	if err := SavePresetsToFile(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadPresetsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b, ok := loaded.Find("b")
	if !ok || b.Parameters["num_drones"] != 7 {
		t.Errorf("b = %+v", b)
	}

	if !loaded.Remove("a") || loaded.Selected != "" {
		t.Error("removing the selected preset should clear the selection")
	}
	if loaded.Remove("a") {
		t.Error("second remove should report false")
	}
}
