package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "react-agent.yaml"

// readFileInto overlays the YAML file at path on c. Keys missing from the
// file keep their current values.
func readFileInto(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a YAML config file on top of the defaults, without
// consulting the environment.
func LoadFile(path string) (*Config, error) {
	c := Defaults()
	if err := readFileInto(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteFile writes c as YAML. The file is replaced atomically.
func WriteFile(path string, c *Config) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLM.APIKey = mask(c.LLM.APIKey)
	out.Search.APIKey = mask(c.Search.APIKey)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}
