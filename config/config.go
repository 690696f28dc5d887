package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"custanalytics/ml"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Models struct {
		Bundle   string `yaml:"bundle"`
		Revenue  string `yaml:"revenue"`
		Purchase string `yaml:"purchase"`
		Segment  string `yaml:"segment"`
		Watch    bool   `yaml:"watch"`
	} `yaml:"models"`
	Results struct {
		CacheSize int           `yaml:"cache_size"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"results"`
	Validation struct {
		StrictSchema bool `yaml:"strict_schema"`
	} `yaml:"validation"`
	Alerts struct {
		FailureRatio float64       `yaml:"failure_ratio"`
		MinRequests  int64         `yaml:"min_requests"`
		Interval     time.Duration `yaml:"interval"`
		Cooldown     time.Duration `yaml:"cooldown"`
		Webhook      string        `yaml:"webhook"`
	} `yaml:"alerts"`
}

func Default() *Config {
	var c Config
	c.Http.Port = 8501
	c.Http.Timeout = 30 * time.Second
	c.Http.MaxUploadBytes = 32 << 20
	c.Http.AllowedOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.Models.Revenue = "models/regression_model.json"
	c.Models.Purchase = "models/classification_model.json"
	c.Models.Segment = "models/clustering_model.json"
	c.Models.Watch = true
	c.Results.CacheSize = 128
	c.Results.TTL = 15 * time.Minute
	c.Validation.StrictSchema = true
	c.Alerts.FailureRatio = 0.5
	c.Alerts.MinRequests = 20
	c.Alerts.Interval = time.Minute
	c.Alerts.Cooldown = 15 * time.Minute
	return &c
}

// Load reads path over the defaults. Relative model and log paths are resolved
// against the directory holding the config file.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}
	config.resolvePaths(filepath.Dir(path))
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Find returns the first of config.yaml or ../config.yaml that exists.
func Find() string {
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join("..", "config.yaml")
	}
	return configPath
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if c.Models.Bundle == "" && (c.Models.Revenue == "" || c.Models.Purchase == "" || c.Models.Segment == "") {
		return errors.New("models: set bundle or all of revenue, purchase and segment")
	}
	if c.Results.CacheSize <= 0 {
		return errors.New("results.cache_size must be positive")
	}
	if c.Alerts.FailureRatio < 0 || c.Alerts.FailureRatio > 1 {
		return errors.New("alerts.failure_ratio must be between 0 and 1")
	}
	if c.Http.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	return nil
}

// ModelPaths lists the artifact files to load when no bundle is configured.
func (c *Config) ModelPaths() ml.FileSource {
	return ml.FileSource{
		ml.TaskRevenue:  c.Models.Revenue,
		ml.TaskPurchase: c.Models.Purchase,
		ml.TaskSegment:  c.Models.Segment,
	}
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Models.Bundle, &c.Models.Revenue, &c.Models.Purchase, &c.Models.Segment, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
