package config

import "time"

// Config holds runtime settings for the FinTrack CLI.
//
// Fields:
//   - APIBaseURL: base URL of the backend (REST, auth and realtime mount
//     under it).
//   - AnonKey: the public API key sent with unauthenticated requests.
//   - CacheDir: directory holding the local snapshot database and key salt.
//   - CachePassphrase: optional passphrase; when set, cached snapshots are
//     encrypted at rest.
//   - RequestTimeout: per-request deadline for HTTP calls.
type Config struct {
	APIBaseURL      string
	AnonKey         string
	CacheDir        string
	CachePassphrase string
	RequestTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.AnonKey = ""
	c.CacheDir = "fintrack-data"
	c.CachePassphrase = ""
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
