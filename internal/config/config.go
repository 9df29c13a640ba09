// Package config carries the CLI-facing configuration the core and
// cmd/gones actually consume: paths, the debug/pause/mute flags, and a
// keymap file. Rendering/window/audio tuning knobs live in whatever
// host collaborator uses internal/video, not here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// KeyMapping names one controller port's keyboard bindings, by
// ebiten key name (e.g. "ArrowUp", "KeyJ").
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// PathsConfig holds every directory/file path the core and CLI resolve
// relative paths against.
type PathsConfig struct {
	SaveData   string `json:"save_data"`
	SaveStates string `json:"save_states"`
	LogDir     string `json:"log_dir"`
}

// Config is the complete CLI-facing configuration, loaded from and
// saved to a JSON file.
type Config struct {
	Paths   PathsConfig `json:"paths"`
	Player1 KeyMapping  `json:"player1_keys"`
	Player2 KeyMapping  `json:"player2_keys"`

	Debug  bool `json:"debug"`
	Paused bool `json:"paused"`
	Muted  bool `json:"muted"`

	configPath string
}

// Default returns a Config populated with the same default bindings and
// paths a fresh `setup` run writes out.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			SaveData:   "./saves",
			SaveStates: "./states",
			LogDir:     "./logs",
		},
		Player1: KeyMapping{
			Up: "KeyW", Down: "KeyS", Left: "KeyA", Right: "KeyD",
			A: "KeyJ", B: "KeyK", Start: "Enter", Select: "Space",
		},
		Player2: KeyMapping{
			Up: "ArrowUp", Down: "ArrowDown", Left: "ArrowLeft", Right: "ArrowRight",
			A: "KeyN", B: "KeyM", Start: "ShiftRight", Select: "ControlRight",
		},
	}
}

// LoadFromFile reads a JSON config from path, writing and returning the
// default configuration if the file does not exist yet.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c := Default()
		c.configPath = path
		if err := c.SaveToFile(path); err != nil {
			return nil, err
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	c := &Config{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.configPath = path

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.createDirectories(); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveToFile writes the configuration as indented JSON to path,
// creating its parent directory if necessary.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config: no file path set, use SaveToFile")
	}
	return c.SaveToFile(c.configPath)
}

func (c *Config) validate() error {
	if c.Paths.SaveData == "" {
		c.Paths.SaveData = "./saves"
	}
	if c.Paths.SaveStates == "" {
		c.Paths.SaveStates = "./states"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "./logs"
	}
	return nil
}

func (c *Config) createDirectories() error {
	for _, dir := range []string{c.Paths.SaveData, c.Paths.SaveStates, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return "./config/gones.json"
}
