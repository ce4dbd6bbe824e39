package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/fintrack-app/fintrack-go/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// accepted either as strings like "15s" or as integer nanoseconds.
type JsonConfig struct {
	APIBaseURL      string   `json:"api_base_url"`
	AnonKey         string   `json:"anon_key"`
	CacheDir        string   `json:"cache_dir"`
	CachePassphrase string   `json:"cache_passphrase"`
	RequestTimeout  duration `json:"request_timeout"`
}

// duration wraps time.Duration with flexible JSON decoding.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(x)
	}
	return nil
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c or -config flags; when neither is set nothing is loaded.
// Fields absent from the file keep their current values. Read and unmarshal
// errors panic; configuration is resolved once at startup and a broken file
// should stop the program.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.AnonKey != "" {
		cfg.AnonKey = jc.AnonKey
	}
	if jc.CacheDir != "" {
		cfg.CacheDir = jc.CacheDir
	}
	if jc.CachePassphrase != "" {
		cfg.CachePassphrase = jc.CachePassphrase
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
