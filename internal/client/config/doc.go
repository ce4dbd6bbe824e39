// Package config loads runtime configuration for the FinTrack CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend
//	-k string   public API key
//	-d string   local data directory
//	-t int      per-request timeout (seconds)
//
// # JSON schema
//
// Durations can be either strings like "15s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://api.fintrack.example",
//	  "anon_key": "public-key",
//	  "cache_dir": "fintrack-data",
//	  "request_timeout": "15s"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
