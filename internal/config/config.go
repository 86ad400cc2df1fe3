// Package config loads runtime settings from an optional YAML file and
// ADK_* environment variables.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging  LoggingConfig
	Manifest ManifestConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
	// Source is the file the config was read from, empty for defaults.
	Source string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ManifestConfig struct {
	Dir string
}

type StorageConfig struct {
	DataRoot    string
	CacheDir    string
	HTTPTimeout time.Duration
}

type MetricsConfig struct {
	Textfile string
}

type FileConfig struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Manifest struct {
		Dir string `yaml:"dir"`
	} `yaml:"manifest"`
	Storage struct {
		DataRoot    string        `yaml:"dataRoot"`
		CacheDir    string        `yaml:"cacheDir"`
		HTTPTimeout time.Duration `yaml:"httpTimeout"`
	} `yaml:"storage"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Manifest: ManifestConfig{
			Dir: ".",
		},
		Storage: StorageConfig{
			CacheDir:    os.TempDir(),
			HTTPTimeout: 60 * time.Second,
		},
	}
}

// Load reads the first readable and valid candidate file, merges it onto the
// defaults and applies env overrides. An empty path means ADK_CONFIG, then
// the conventional locations.
func Load(path string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if path == "" {
		path = envString("ADK_CONFIG")
	}
	if path != "" {
		candidates = append(candidates, path)
	} else {
		candidates = append(candidates,
			"adk.yaml",
			"config/adk.yaml",
		)
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		merged.Source = candidate
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src FileConfig) {
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
	if src.Manifest.Dir != "" {
		dst.Manifest.Dir = src.Manifest.Dir
	}
	if src.Storage.DataRoot != "" {
		dst.Storage.DataRoot = src.Storage.DataRoot
	}
	if src.Storage.CacheDir != "" {
		dst.Storage.CacheDir = src.Storage.CacheDir
	}
	if src.Storage.HTTPTimeout > 0 {
		dst.Storage.HTTPTimeout = src.Storage.HTTPTimeout
	}
	if src.Metrics.Textfile != "" {
		dst.Metrics.Textfile = src.Metrics.Textfile
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := envString("ADK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := envString("ADK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := envString("ADK_MANIFEST_DIR"); v != "" {
		cfg.Manifest.Dir = v
	}
	if v := envString("ADK_DATA_ROOT"); v != "" {
		cfg.Storage.DataRoot = v
	}
	if v := envString("ADK_CACHE_DIR"); v != "" {
		cfg.Storage.CacheDir = v
	}
	cfg.Storage.HTTPTimeout = envDurationWithFallback("ADK_HTTP_TIMEOUT", cfg.Storage.HTTPTimeout)
	if v := envString("ADK_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}
