package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file writes template and errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")

		_, err := Load(path)
		if !errors.Is(err, ErrCreatedDefault) {
			t.Fatalf("expected ErrCreatedDefault, got %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("template config was not written: %v", err)
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			t.Fatalf("template is not valid JSON: %v", err)
		}
		if cfg.ClientID != "your_client_id_here" {
			t.Errorf("ClientID = %q, want placeholder", cfg.ClientID)
		}
		if cfg.RedirectURI != "http://localhost:8080/callback" {
			t.Errorf("RedirectURI = %q", cfg.RedirectURI)
		}
		if !strings.Contains(string(data), "\n  ") {
			t.Error("template should be pretty-printed")
		}
	})

	t.Run("existing file loads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"client_id":"id","client_secret":"secret","redirect_uri":"http://localhost/cb"}`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.ClientID != "id" || cfg.ClientSecret != "secret" {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})

	t.Run("second load does not error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if _, err := Load(path); !errors.Is(err, ErrCreatedDefault) {
			t.Fatalf("first load: %v", err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("second load should read the template: %v", err)
		}
		if cfg.ClientID == "" {
			t.Error("expected placeholder values on second load")
		}
	})

	t.Run("invalid JSON errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}
