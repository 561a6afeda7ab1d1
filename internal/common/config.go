package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Speech   SpeechConfig   `yaml:"speech"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Workers  int            `yaml:"workers"`
}

// DatabaseConfig holds document-store configuration. Driver selects the
// backend: "postgres" (pgx pool) or "sqlite" (embedded, local use).
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// SpeechConfig holds settings for the asynchronous speech service.
type SpeechConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	APIKey           string        `yaml:"api_key"`
	Locale           string        `yaml:"locale"`
	MaxSpeakers      int           `yaml:"max_speakers"`
	CandidateLocales []string      `yaml:"candidate_locales"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PollTimeout      time.Duration `yaml:"poll_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// AnalysisConfig holds settings for the text-analysis service.
type AnalysisConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Deployment  string        `yaml:"deployment"`
	APIVersion  string        `yaml:"api_version"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig holds artifact-store configuration. Artifacts are
// written under RootDir; BaseURL, when set, is prepended to artifact
// names to form the URIs recorded on job documents.
type StorageConfig struct {
	RootDir string `yaml:"root_dir"`
	BaseURL string `yaml:"base_url"`
}

// IngestConfig holds recording-watcher configuration.
type IngestConfig struct {
	RecordingsDir string        `yaml:"recordings_dir"`
	Debounce      time.Duration `yaml:"debounce"`
	InitialScan   bool          `yaml:"initial_scan"`
}

// LoadConfig loads configuration from environment variables, then
// overlays the optional YAML file named by CONFIG_FILE. List-valued
// settings read more naturally from the file; everything has an env
// form for container deployments.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Speech: SpeechConfig{
			Endpoint:         getEnv("SPEECH_ENDPOINT", ""),
			APIKey:           getEnv("SPEECH_API_KEY", ""),
			Locale:           getEnv("SPEECH_LOCALE", "en-US"),
			MaxSpeakers:      getEnvAsInt("SPEECH_MAX_SPEAKERS", 2),
			CandidateLocales: getEnvAsList("SPEECH_CANDIDATE_LOCALES", []string{"en-US"}),
			PollInterval:     getEnvAsDuration("SPEECH_POLL_INTERVAL", 20*time.Second),
			PollTimeout:      getEnvAsDuration("SPEECH_POLL_TIMEOUT", 5*time.Hour),
			RequestTimeout:   getEnvAsDuration("SPEECH_REQUEST_TIMEOUT", 30*time.Second),
		},
		Analysis: AnalysisConfig{
			Endpoint:    getEnv("ANALYSIS_ENDPOINT", ""),
			Deployment:  getEnv("ANALYSIS_DEPLOYMENT", "gpt-4o"),
			APIVersion:  getEnv("ANALYSIS_API_VERSION", "2024-06-01"),
			APIKey:      getEnv("ANALYSIS_API_KEY", ""),
			Temperature: getEnvAsFloat32("ANALYSIS_TEMPERATURE", 0.7),
			Timeout:     getEnvAsDuration("ANALYSIS_TIMEOUT", 120*time.Second),
		},
		Storage: StorageConfig{
			RootDir: getEnv("STORAGE_ROOT", "./data"),
			BaseURL: getEnv("STORAGE_BASE_URL", ""),
		},
		Ingest: IngestConfig{
			RecordingsDir: getEnv("RECORDINGS_DIR", "./data/recordings"),
			Debounce:      getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			InitialScan:   getEnvAsBool("WATCH_INITIAL_SCAN", false),
		},
		Workers: getEnvAsInt("WORKERS", 4),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks the settings the pipeline daemon cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return Errorf(KindInvalidRequest, "DB_URL is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return Errorf(KindInvalidRequest, "unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.Speech.Endpoint == "" {
		return Errorf(KindInvalidRequest, "SPEECH_ENDPOINT is required")
	}
	if c.Speech.APIKey == "" {
		return Errorf(KindInvalidRequest, "SPEECH_API_KEY is required")
	}
	if c.Speech.MaxSpeakers < 1 {
		return Errorf(KindInvalidRequest, "SPEECH_MAX_SPEAKERS must be at least 1")
	}
	if c.Analysis.Endpoint == "" {
		return Errorf(KindInvalidRequest, "ANALYSIS_ENDPOINT is required")
	}
	if c.Analysis.APIKey == "" {
		return Errorf(KindInvalidRequest, "ANALYSIS_API_KEY is required")
	}
	if c.Workers < 1 {
		return Errorf(KindInvalidRequest, "WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
