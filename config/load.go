package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a partial configuration from a JSON file. The result is
// meant to be merged over Default, so absent fields stay at their
// defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
