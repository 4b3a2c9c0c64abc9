// Package config loads the bridge configuration from defaults, YAML files,
// environment variables and explicit overrides, and validates it.
package config
