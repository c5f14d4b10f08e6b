package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// RegistrationRate is the sustained POST /participants rate per client, per second.
		RegistrationRate  float64 `yaml:"registration_rate"`
		RegistrationBurst int     `yaml:"registration_burst"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Admin struct {
		Secret string `yaml:"secret"`
	} `yaml:"admin"`
	Scoring struct {
		Verify bool `yaml:"verify"`
	} `yaml:"scoring"`
	Challenge struct {
		Duration  string `yaml:"duration"`
		CachePath string `yaml:"cache_path"`
	} `yaml:"challenge"`
	Client struct {
		APIURL     string `yaml:"api_url"`
		Timeout    string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
		RetryDelay string `yaml:"retry_delay"`
	} `yaml:"client"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields an empty config so
// every setting falls back to its default.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
