// Package brand provides centralized naming constants for ipfeed.
//
// The identity is loaded from brand.json at compile time via go:embed so that
// packaging scripts can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Vendor           string `json:"vendor"`
	Website          string `json:"website"`
	Repository       string `json:"repository"`
	Description      string `json:"description"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultStateDir  string `json:"defaultStateDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultStateDir = b.DefaultStateDir
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
}

var (
	Name             string
	LowerName        string
	Description      string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	DefaultStateDir  string
	BinaryName       string
	ConfigFileName   string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: IPFEED_STATE_DIR > IPFEED_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return DefaultStateDir
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: IPFEED_CONFIG_DIR > IPFEED_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// DefaultConfigPath returns the config file path used when -config is not given.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}
