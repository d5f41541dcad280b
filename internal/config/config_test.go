package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Detector.Backend = "opencv" }, "detector.backend"},
		{"pigo without cascade", func(c *Config) { c.Detector.Pigo.CascadePath = "" }, "cascade_path"},
		{"ollama without model", func(c *Config) {
			c.Detector.Backend = BackendOllama
			c.Detector.Vision.Model = ""
		}, "vision.model"},
		{"vision without url", func(c *Config) {
			c.Detector.Backend = BackendLlamaCpp
			c.Detector.Vision.URL = ""
		}, "vision.url"},
		{"bad confidence", func(c *Config) {
			c.Detector.Backend = BackendLlamaCpp
			c.Detector.Vision.MinConfidence = 2
		}, "min_confidence"},
		{"bad crop", func(c *Config) { c.Crop.VerticalAnchor = 1.5 }, "crop"},
		{"bad quality", func(c *Config) { c.Output.JPEGQuality = 0 }, "jpeg_quality"},
		{"bad overlay format", func(c *Config) { c.Output.OverlayFormat = "gif" }, "overlay_format"},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }, "workers"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	c := Default()
	c.Pipeline.Workers = 3
	c.Detector.Backend = BackendOllama
	c.Crop.VerticalAnchor = 0.3
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Pipeline.Workers != 3 || loaded.Detector.Backend != BackendOllama || loaded.Crop.VerticalAnchor != 0.3 {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestLoadFromFileKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"pipeline": {"workers": 2}}`), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Pipeline.Workers != 2 {
		t.Errorf("Expected workers 2, got %d", c.Pipeline.Workers)
	}
	if c.Crop.VerticalExpansion != 1.8 || c.Output.JPEGQuality != 90 {
		t.Errorf("Expected defaults for missing sections, got %+v", c)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Detector.Backend != BackendPigo {
		t.Errorf("Expected default backend, got %q", c.Detector.Backend)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORTRAIT_CROP_BACKEND":   "llamacpp",
		"PORTRAIT_CROP_WORKERS":   "4",
		"PORTRAIT_CROP_OVERLAY":   "true",
		"PORTRAIT_CROP_LOG_LEVEL": "debug",
		"POSTGRES_HOST":           "db",
		"POSTGRES_USER":           "crop",
		"POSTGRES_PASSWORD":       "secret",
		"POSTGRES_DB":             "runs",
	}

	c := Default()
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if c.Detector.Backend != BackendLlamaCpp || c.Pipeline.Workers != 4 || !c.Output.Overlay || c.Log.Level != "debug" {
		t.Errorf("Overrides not applied: %+v", c)
	}
	if want := "postgres://crop:secret@db:5432/runs"; c.Store.DatabaseURL != want {
		t.Errorf("DatabaseURL = %q, want %q", c.Store.DatabaseURL, want)
	}
}

func TestPostgresURLEscapesCredentials(t *testing.T) {
	env := map[string]string{
		"POSTGRES_HOST":     "db",
		"POSTGRES_USER":     "crop",
		"POSTGRES_PASSWORD": "p@ss:w/rd?#",
		"POSTGRES_DB":       "runs",
	}
	raw := postgresURL(func(k string) string { return env[k] })

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Generated URL %q does not parse: %v", raw, err)
	}
	pass, _ := u.User.Password()
	if u.User.Username() != "crop" || pass != env["POSTGRES_PASSWORD"] {
		t.Errorf("Credentials did not round trip: %q", raw)
	}
	if u.Host != "db:5432" || u.Path != "/runs" {
		t.Errorf("Unexpected host or database in %q", raw)
	}

	delete(env, "POSTGRES_PASSWORD")
	if got, want := postgresURL(func(k string) string { return env[k] }), "postgres://crop@db:5432/runs"; got != want {
		t.Errorf("postgresURL without password = %q, want %q", got, want)
	}
}

func TestApplyEnvKeepsExplicitDatabaseURL(t *testing.T) {
	c := Default()
	c.Store.DatabaseURL = "postgres://explicit/db"
	env := map[string]string{"POSTGRES_HOST": "other"}
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if c.Store.DatabaseURL != "postgres://explicit/db" {
		t.Errorf("Expected explicit URL to win, got %q", c.Store.DatabaseURL)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	for _, key := range []string{"PORTRAIT_CROP_WORKERS", "PORTRAIT_CROP_DRY_RUN"} {
		c := Default()
		err := c.ApplyEnv(func(k string) string {
			if k == key {
				return "many"
			}
			return ""
		})
		if err == nil {
			t.Errorf("Expected error for %s=many", key)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), filepath.Join("portrait-crop", "config.json")) {
		t.Errorf("Unexpected config path %q", GetConfigPath())
	}
}
