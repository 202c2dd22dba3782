package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoadFile loads a config file (HCL or JSON), applies defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(data)
	default:
		return LoadHCL(data, path)
	}
}

// LoadHCL loads config from HCL bytes.
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, evalContext(), &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL decode error: %s", diags.Error())
	}

	return finish(&cfg)
}

// LoadJSON loads config from JSON bytes.
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if cfg.SchemaVersion != "" && !IsSupportedVersion(cfg.SchemaVersion) {
		return nil, fmt.Errorf("unsupported config schema version %s (supported: %v)",
			cfg.SchemaVersion, SupportedVersions)
	}
	cfg.ApplyDefaults()
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return cfg, nil
}

// SupportedVersions lists schema versions this release can read.
var SupportedVersions = []string{"1", "1.0"}

// IsSupportedVersion reports whether v can be loaded.
func IsSupportedVersion(v string) bool {
	for _, s := range SupportedVersions {
		if v == s {
			return true
		}
	}
	return false
}
