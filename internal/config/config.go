package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/menta2k/portrait-crop/pkg/cropper"
	"github.com/menta2k/portrait-crop/pkg/facefinder"
)

// Detector backends
const (
	BackendPigo     = "pigo"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PORTRAIT_CROP_"

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Crop     cropper.Params `json:"crop"`
	Output   OutputConfig   `json:"output"`
	Pipeline PipelineConfig `json:"pipeline"`
	Store    StoreConfig    `json:"store"`
	Log      LogConfig      `json:"log"`
}

// DetectorConfig selects and tunes the face detector backend
type DetectorConfig struct {
	Backend string            `json:"backend"`
	Pigo    facefinder.Config `json:"pigo"`
	Vision  VisionConfig      `json:"vision"`
}

// VisionConfig holds configuration for vision-model backends
type VisionConfig struct {
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	SendFormat    string  `json:"send_format"`
	SendSize      int     `json:"send_size"`
	SendQuality   int     `json:"send_quality"`
	MinConfidence float64 `json:"min_confidence"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	JPEGQuality    int    `json:"jpeg_quality"`
	AutoOrient     bool   `json:"auto_orient"`
	Overlay        bool   `json:"overlay"`
	OverlayFormat  string `json:"overlay_format"`
	OverlayQuality int    `json:"overlay_quality"`
	DryRun         bool   `json:"dry_run"`
}

// PipelineConfig holds batch execution settings
type PipelineConfig struct {
	Workers int `json:"workers"`
}

// StoreConfig holds the optional run-history database
type StoreConfig struct {
	DatabaseURL string `json:"database_url"`
}

// LogConfig holds diagnostic logging settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend: BackendPigo,
			Pigo:    defaultPigo(),
			Vision: VisionConfig{
				URL:           "http://localhost:11434",
				Model:         "qwen2.5vl:7b",
				SendFormat:    "jpg",
				SendSize:      1024,
				SendQuality:   85,
				MinConfidence: 0.3,
			},
		},
		Crop: cropper.DefaultParams(),
		Output: OutputConfig{
			JPEGQuality:    90,
			AutoOrient:     true,
			OverlayFormat:  "png",
			OverlayQuality: 85,
		},
		Pipeline: PipelineConfig{Workers: 1},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

func defaultPigo() facefinder.Config {
	c := facefinder.DefaultConfig()
	c.CascadePath = filepath.Join("cascade", "facefinder")
	return c
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep their
// default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists and falls back to defaults otherwise.
// Environment overrides are applied in both cases.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if config, err = LoadFromFile(filename); err != nil {
				return nil, err
			}
		}
	}
	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from PORTRAIT_CROP_* variables. When no database
// URL is configured it is assembled from POSTGRES_HOST and friends.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v := getenv(EnvPrefix + key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("BACKEND", &c.Detector.Backend)
	str("CASCADE", &c.Detector.Pigo.CascadePath)
	str("VISION_URL", &c.Detector.Vision.URL)
	str("VISION_MODEL", &c.Detector.Vision.Model)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if err := num("WORKERS", &c.Pipeline.Workers); err != nil {
		return err
	}
	if err := num("JPEG_QUALITY", &c.Output.JPEGQuality); err != nil {
		return err
	}
	if err := flag("OVERLAY", &c.Output.Overlay); err != nil {
		return err
	}
	if err := flag("DRY_RUN", &c.Output.DryRun); err != nil {
		return err
	}

	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = postgresURL(getenv)
	}
	return nil
}

func postgresURL(getenv func(string) string) string {
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + getenv("POSTGRES_DB"),
	}
	// credentials may hold @, : or / and are escaped by url.URL
	if user, pass := getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else if user != "" {
		u.User = url.User(user)
	}
	return u.String()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	backends := []string{BackendPigo, BackendOllama, BackendLlamaCpp}
	if !slices.Contains(backends, c.Detector.Backend) {
		return fmt.Errorf("detector.backend must be one of %s", strings.Join(backends, ", "))
	}

	if c.Detector.Backend == BackendPigo && c.Detector.Pigo.CascadePath == "" {
		return fmt.Errorf("detector.pigo.cascade_path is required for the pigo backend")
	}

	if c.Detector.Backend != BackendPigo {
		if c.Detector.Vision.URL == "" {
			return fmt.Errorf("detector.vision.url is required for the %s backend", c.Detector.Backend)
		}
		if c.Detector.Backend == BackendOllama && c.Detector.Vision.Model == "" {
			return fmt.Errorf("detector.vision.model is required for the ollama backend")
		}
		if c.Detector.Vision.MinConfidence < 0 || c.Detector.Vision.MinConfidence > 1 {
			return fmt.Errorf("detector.vision.min_confidence must be between 0 and 1")
		}
	}

	if err := c.Crop.Validate(); err != nil {
		return fmt.Errorf("crop: %w", err)
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}

	if !slices.Contains([]string{"png", "jpg", "jpeg", "webp"}, strings.ToLower(c.Output.OverlayFormat)) {
		return fmt.Errorf("output.overlay_format must be png, jpg or webp")
	}

	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 4*runtime.NumCPU() {
		return fmt.Errorf("pipeline.workers must be between 1 and %d", 4*runtime.NumCPU())
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}

	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "portrait-crop", "config.json")
}
