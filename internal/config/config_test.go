package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gones.json")

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected a default config file to be written: %v", err)
	}
	if c.Player1.A != "KeyJ" {
		t.Fatalf("default player1 A binding = %q, want KeyJ", c.Player1.A)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gones.json")

	c := Default()
	c.Debug = true
	c.Muted = true
	c.Paths.SaveData = filepath.Join(dir, "saves")
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if !loaded.Debug || !loaded.Muted {
		t.Fatalf("loaded config lost debug/muted flags: %+v", loaded)
	}
	if loaded.Paths.SaveData != c.Paths.SaveData {
		t.Fatalf("save data path mismatch: got %q, want %q", loaded.Paths.SaveData, c.Paths.SaveData)
	}
}

func TestValidateFillsEmptyPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gones.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.Paths.SaveData == "" || c.Paths.SaveStates == "" || c.Paths.LogDir == "" {
		t.Fatalf("empty paths should have been filled with defaults: %+v", c.Paths)
	}
}

func TestSaveWithoutPathFails(t *testing.T) {
	c := Default()
	if err := c.Save(); err == nil {
		t.Fatalf("Save with no configPath set should fail")
	}
}
