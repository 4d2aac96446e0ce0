// Package config loads the OAuth application config from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrCreatedDefault is returned by Load when no config file existed and a
// template was written in its place. The caller is expected to tell the
// operator to fill it in and exit nonzero; no useful work is possible
// without real credentials.
var ErrCreatedDefault = errors.New("created default config file")

// Config holds the OAuth 2.0 application credentials.
type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// Load reads the config file at path. If the file does not exist, a
// template config is written there and ErrCreatedDefault is returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := writeDefault(path); werr != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", werr)
			}
			return Config{}, fmt.Errorf("%w: %s", ErrCreatedDefault, path)
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefault(path string) error {
	def := Config{
		ClientID:     "your_client_id_here",
		ClientSecret: "your_client_secret_here",
		RedirectURI:  "http://localhost:8080/callback",
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
