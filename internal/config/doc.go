// Package config provides configuration loading and validation for the
// streaming client and the reference receiver. Values come from built-in
// defaults, an optional YAML file, .env files and STREAM_* environment
// variables; command-line flags are applied last by the caller.
package config
