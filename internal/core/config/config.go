package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultReportTemplate = `Soil report{{#analyzed}} ({{analyzed}}){{/analyzed}}
Overall health: {{health}}
pH {{ph}} - {{ph_status}}{{#ph_advice}}: {{ph_advice}}{{/ph_advice}}
Nitrogen {{nitrogen}} | Phosphorus {{phosphorus}} | Potassium {{potassium}} | Moisture {{moisture}}
{{#fertilizer}}Fertilizer: {{type}} ({{confidence}} confidence)
{{/fertilizer}}{{#has_crops}}
Recommended crops for {{region}}, {{season}} season:
{{#crops}}  {{rank}}. {{crop}} - water {{water_need}}, pH {{ph_range}}
{{/crops}}{{/has_crops}}{{^has_crops}}
No crop recommendations for this soil.
{{/has_crops}}`

const (
	DefaultAPIURL          = "http://localhost:5000"
	DefaultRequestTimeout  = 15 * time.Second
	DefaultStore           = "sqlite"
	DefaultRegion          = "Andhra Pradesh"
	DefaultSeason          = "rainy"
	DefaultWeatherLocation = "Visakhapatnam"
	DefaultLogLevel        = "info"
)

type Config struct {
	APIURL          string
	RequestTimeout  time.Duration
	Store           string // sqlite, redis or memory
	DBPath          string
	RedisAddr       string
	RedisDB         int
	RedisPrefix     string
	DefaultRegion   string
	DefaultSeason   string
	WeatherLocation string
	LogLevel        string
	LogFile         string // empty disables logging

	ReportTemplate string
	Dir            string
}

type tomlConfig struct {
	APIURL          string `toml:"api_url"`
	RequestTimeout  string `toml:"request_timeout"`
	Store           string `toml:"store"`
	DBPath          string `toml:"db_path"`
	RedisAddr       string `toml:"redis_addr"`
	RedisDB         int    `toml:"redis_db"`
	RedisPrefix     string `toml:"redis_prefix"`
	DefaultRegion   string `toml:"default_region"`
	DefaultSeason   string `toml:"default_season"`
	WeatherLocation string `toml:"weather_location"`
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		APIURL:          DefaultAPIURL,
		RequestTimeout:  DefaultRequestTimeout,
		Store:           DefaultStore,
		DBPath:          filepath.Join(dir, "state.db"),
		DefaultRegion:   DefaultRegion,
		DefaultSeason:   DefaultSeason,
		WeatherLocation: DefaultWeatherLocation,
		LogLevel:        DefaultLogLevel,
		ReportTemplate:  DefaultReportTemplate,
		Dir:             dir,
	}
}

// Dir returns ~/.config/fieldhand, or a relative .fieldhand if there is no
// home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldhand"
	}
	return filepath.Join(home, ".config", "fieldhand")
}

// Load reads config from ~/.config/fieldhand/
func Load() (*Config, error) {
	return LoadFrom(Dir())
}

// LoadFrom reads config.toml and report_template.mustache from dir. Missing
// files leave the defaults in place; a malformed config.toml is an error.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default(dir)

	tomlPath := filepath.Join(dir, "config.toml")
	templatePath := filepath.Join(dir, "report_template.mustache")

	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
		if err := cfg.merge(tc); err != nil {
			return nil, err
		}
	}

	if data, err := os.ReadFile(templatePath); err == nil {
		cfg.ReportTemplate = string(data)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(tc tomlConfig) error {
	if tc.APIURL != "" {
		c.APIURL = tc.APIURL
	}
	if tc.RequestTimeout != "" {
		d, err := time.ParseDuration(tc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", tc.RequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	if tc.Store != "" {
		c.Store = tc.Store
	}
	if tc.DBPath != "" {
		c.DBPath = expandHome(tc.DBPath)
	}
	if tc.RedisAddr != "" {
		c.RedisAddr = tc.RedisAddr
	}
	c.RedisDB = tc.RedisDB
	if tc.RedisPrefix != "" {
		c.RedisPrefix = tc.RedisPrefix
	}
	if tc.DefaultRegion != "" {
		c.DefaultRegion = tc.DefaultRegion
	}
	if tc.DefaultSeason != "" {
		c.DefaultSeason = tc.DefaultSeason
	}
	if tc.WeatherLocation != "" {
		c.WeatherLocation = tc.WeatherLocation
	}
	if tc.LogLevel != "" {
		c.LogLevel = tc.LogLevel
	}
	if tc.LogFile != "" {
		c.LogFile = expandHome(tc.LogFile)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("FIELDHAND_API_URL"); url != "" {
		c.APIURL = url
	}
	if store := os.Getenv("FIELDHAND_STORE"); store != "" {
		c.Store = store
	}
	if addr := os.Getenv("FIELDHAND_REDIS_ADDR"); addr != "" {
		c.RedisAddr = addr
	}
	if level := os.Getenv("FIELDHAND_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// Validate checks the settings that would otherwise fail much later.
func (c *Config) Validate() error {
	switch c.Store {
	case "sqlite", "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("store = \"redis\" needs redis_addr (or FIELDHAND_REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite, redis or memory)", c.Store)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
