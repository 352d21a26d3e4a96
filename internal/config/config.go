package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// StorageConfig selects where raw file bytes live.
type StorageConfig struct {
	// Backend is "disk" or "minio".
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// GeminiConfig carries the per-feature gateway keys. A missing key does
// not fail startup; that feature reports missing credentials when called.
type GeminiConfig struct {
	EditorKey        string `yaml:"editorKey"`
	ChatKey          string `yaml:"chatKey"`
	TranscriptionKey string `yaml:"transcriptionKey"`
	FileAnalysisKey  string `yaml:"fileAnalysisKey"`
	Model            string `yaml:"model"`
	AnalysisModel    string `yaml:"analysisModel"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string        `yaml:"port"`
	LogLevel       string        `yaml:"logLevel"`
	DatabaseURL    string        `yaml:"databaseURL"`
	RedisAddr      string        `yaml:"redisAddr"`
	RedisPassword  string        `yaml:"redisPassword"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
	Storage        StorageConfig `yaml:"storage"`
	Gemini         GeminiConfig  `yaml:"gemini"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *FileConfig) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"WRITEBOX_PORT", &cfg.Port},
		{"WRITEBOX_LOG_LEVEL", &cfg.LogLevel},
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"WRITEBOX_STORAGE_BACKEND", &cfg.Storage.Backend},
		{"WRITEBOX_STORAGE_PATH", &cfg.Storage.Path},
		{"MINIO_ENDPOINT", &cfg.Storage.MinioEndpoint},
		{"MINIO_ACCESS_KEY", &cfg.Storage.MinioAccessKey},
		{"MINIO_SECRET_KEY", &cfg.Storage.MinioSecretKey},
		{"MINIO_BUCKET", &cfg.Storage.MinioBucket},
		{"GEMINI_EDITOR_KEY", &cfg.Gemini.EditorKey},
		{"GEMINI_CHAT_KEY", &cfg.Gemini.ChatKey},
		{"GEMINI_TRANSCRIPTION_KEY", &cfg.Gemini.TranscriptionKey},
		{"GEMINI_FILE_ANALYSIS_KEY", &cfg.Gemini.FileAnalysisKey},
		{"GEMINI_MODEL", &cfg.Gemini.Model},
		{"GEMINI_ANALYSIS_MODEL", &cfg.Gemini.AnalysisModel},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or WRITEBOX_PORT)")
	}
	if cfg.Gemini.Model == "" {
		return errors.New("config: gemini.model is required (set in config.yaml)")
	}
	switch cfg.Storage.Backend {
	case "", "disk":
		if cfg.Storage.Path == "" {
			return errors.New("config: storage.path is required for the disk backend")
		}
	case "minio":
		if cfg.Storage.MinioEndpoint == "" || cfg.Storage.MinioBucket == "" {
			return errors.New("config: storage.minioEndpoint and storage.minioBucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must not be negative")
	}
	return nil
}
