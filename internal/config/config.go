// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvBaseURL  = "DECKDRILL_BASE_URL"
	EnvAPIToken = "DECKDRILL_API_TOKEN"
	EnvPageSize = "DECKDRILL_PAGE_SIZE"
	EnvDueOnly  = "DECKDRILL_DUE_ONLY"
)

type Config struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
	Study    struct {
		PageSize    int           `yaml:"page_size"`
		DueOnly     *bool         `yaml:"due_only"`
		AutoAdvance time.Duration `yaml:"auto_advance"`
	} `yaml:"study"`
	Import struct {
		ChunkSize   int `yaml:"chunk_size"`
		Concurrency int `yaml:"concurrency"`
		MaxPDFPages int `yaml:"max_pdf_pages"`
	} `yaml:"import"`
	Stats struct {
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		ChartDir        string        `yaml:"chart_dir"`
	} `yaml:"stats"`
	Updates struct {
		// ManifestURL is an optional release manifest checked before GitHub.
		ManifestURL string `yaml:"manifest_url"`
	} `yaml:"updates"`
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadDotEnv merges a .env file into the process environment. Variables that are
// already set win. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with DECKDRILL_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIToken)); v != "" {
		c.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPageSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q", EnvPageSize, v)
		}
		c.Study.PageSize = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvDueOnly)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q", EnvDueOnly, v)
		}
		c.Study.DueOnly = &b
	}
	return nil
}

func (c *Config) DueOnly() bool {
	return c.Study.DueOnly == nil || *c.Study.DueOnly
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5000"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Study.PageSize <= 0 {
		c.Study.PageSize = 25
	}
	if c.Study.AutoAdvance <= 0 {
		c.Study.AutoAdvance = 1500 * time.Millisecond
	}
	if c.Import.ChunkSize <= 0 {
		c.Import.ChunkSize = 4000
	}
	if c.Import.Concurrency <= 0 {
		c.Import.Concurrency = 2
	}
	if c.Import.MaxPDFPages <= 0 {
		c.Import.MaxPDFPages = 300
	}
	if c.Stats.RefreshInterval <= 0 {
		c.Stats.RefreshInterval = time.Minute
	}
}
