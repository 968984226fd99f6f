package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPort            = 3000
	DefaultDatabase        = "recursos.db"
	DefaultSignatureHeader = "sanity-webhook-signature"
	DefaultCacheTTL        = 3600
	DefaultTidyInterval    = 300
	DefaultCMSAPIVersion   = "2023-05-03"
	DefaultCMSDataset      = "production"
)

// TomlServer holds the HTTP server settings
type TomlServer struct {
	Hostname     string `toml:"hostname"`
	Port         int    `toml:"port"`
	AllowOrigins string `toml:"allow_origins,omitempty"`
}

// TomlWebhook holds the revalidation webhook settings
type TomlWebhook struct {
	Secret          string `toml:"secret,omitempty"`
	SignatureHeader string `toml:"signature_header,omitempty"`
	Refresh         bool   `toml:"refresh"` // Resync the changed document before invalidating
}

// TomlCache holds the page cache settings, in seconds
type TomlCache struct {
	TTL          int `toml:"ttl"`
	TidyInterval int `toml:"tidy_interval"`
}

// TomlCMS holds the headless CMS connection
type TomlCMS struct {
	ProjectID  string `toml:"project_id"`
	Dataset    string `toml:"dataset"`
	APIVersion string `toml:"api_version"`
	Token      string `toml:"token,omitempty"`
	UseCDN     bool   `toml:"use_cdn"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Database string      `toml:"database"`
	Server   TomlServer  `toml:"server"`
	Webhook  TomlWebhook `toml:"webhook"`
	Cache    TomlCache   `toml:"cache"`
	CMS      TomlCMS     `toml:"cms"`
}

// Default returns a configuration with every default applied
func Default() *TomlConfig {
	config := &TomlConfig{}
	config.applyDefaults()
	return config
}

func (c *TomlConfig) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Hostname == "" {
		c.Server.Hostname = "localhost"
	}
	if c.Webhook.SignatureHeader == "" {
		c.Webhook.SignatureHeader = DefaultSignatureHeader
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.TidyInterval == 0 {
		c.Cache.TidyInterval = DefaultTidyInterval
	}
	if c.CMS.Dataset == "" {
		c.CMS.Dataset = DefaultCMSDataset
	}
	if c.CMS.APIVersion == "" {
		c.CMS.APIVersion = DefaultCMSAPIVersion
	}
}

// CacheTTL is how long a rendered page stays cached
func (c *TomlConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// TidyInterval is how often expired pages are removed
func (c *TomlConfig) TidyInterval() time.Duration {
	return time.Duration(c.Cache.TidyInterval) * time.Second
}

// CMSEnabled reports whether a CMS project is configured
func (c *TomlConfig) CMSEnabled() bool {
	return c.CMS.ProjectID != ""
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	config.applyDefaults()

	if config.Cache.TTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %d", config.Cache.TTL)
	}
	if config.Cache.TidyInterval < 0 {
		return nil, fmt.Errorf("cache tidy_interval must not be negative, got %d", config.Cache.TidyInterval)
	}

	return &config, nil
}
