package config

import (
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
)

var (
	validBackoffs   = []string{BackoffFixed, BackoffLinear, BackoffExponential}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validLogOutputs = []string{"stdout", "stderr", "file", "both"}
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg.Retries < 0 {
		v.addError("retries", "retries must be non-negative")
	}
	v.validateRetryConfig(&cfg.Retry)
	v.validateCommandsConfig(&cfg.Commands)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRetryConfig(cfg *RetryConfig) {
	if cfg.Delay < 0 {
		v.addError("retry.delay", "delay must be non-negative")
	}
	if cfg.MaxDelay < 0 {
		v.addError("retry.max_delay", "max delay must be non-negative")
	}
	if cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.Delay {
		v.addError("retry.max_delay", "max delay should not be less than delay")
	}
	if cfg.Backoff != "" && !slice.Contain(validBackoffs, strings.ToLower(cfg.Backoff)) {
		v.addError("retry.backoff", fmt.Sprintf("invalid backoff %q, must be one of: %s",
			cfg.Backoff, strings.Join(validBackoffs, ", ")))
	}
}

func (v *Validator) validateCommandsConfig(cfg *CommandsConfig) {
	for _, name := range cfg.RawResult {
		if slice.Contain(cfg.Excluded, name) {
			v.addError("commands.raw_result", fmt.Sprintf("%q is excluded from wrapping", name))
		}
	}
	for _, name := range cfg.Excluded {
		if strings.TrimSpace(name) == "" {
			v.addError("commands.excluded", "command names must not be empty")
			break
		}
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	if cfg.Level != "" && !slice.Contain(validLogLevels, strings.ToLower(cfg.Level)) {
		v.addError("logging.level", fmt.Sprintf("invalid log level %q, must be one of: %s",
			cfg.Level, strings.Join(validLogLevels, ", ")))
	}
	if cfg.Format != "" && !slice.Contain(validLogFormats, strings.ToLower(cfg.Format)) {
		v.addError("logging.format", fmt.Sprintf("invalid log format %q, must be one of: %s",
			cfg.Format, strings.Join(validLogFormats, ", ")))
	}
	if cfg.Output != "" && !slice.Contain(validLogOutputs, strings.ToLower(cfg.Output)) {
		v.addError("logging.output", fmt.Sprintf("invalid log output %q, must be one of: %s",
			cfg.Output, strings.Join(validLogOutputs, ", ")))
	}
	if (strings.EqualFold(cfg.Output, "file") || strings.EqualFold(cfg.Output, "both")) && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required when output is file")
	}
	if cfg.MaxSize < 0 {
		v.addError("logging.max_size", "max size must be non-negative")
	}
	if cfg.MaxBackups < 0 {
		v.addError("logging.max_backups", "max backups must be non-negative")
	}
	if cfg.MaxAge < 0 {
		v.addError("logging.max_age", "max age must be non-negative")
	}
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
