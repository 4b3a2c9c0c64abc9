package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"negative retries", func(c *Config) { c.Retries = -1 }, "retries"},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }, "retry.delay"},
		{"max below delay", func(c *Config) {
			c.Retry.Delay = time.Second
			c.Retry.MaxDelay = time.Millisecond
		}, "retry.max_delay"},
		{"unknown backoff", func(c *Config) { c.Retry.Backoff = "random" }, "retry.backoff"},
		{"raw result excluded", func(c *Config) { c.Commands.RawResult = []string{"emit"} }, "commands.raw_result"},
		{"empty excluded name", func(c *Config) { c.Commands.Excluded = []string{" "} }, "commands.excluded"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "text" }, "logging.format"},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"file without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"negative max age", func(c *Config) { c.Logging.MaxAge = -1 }, "logging.max_age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.True(t, verrs.HasErrors())
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = -1
	cfg.Logging.Level = "loud"

	err := NewValidator().Validate(cfg)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestValidationErrorsEmpty(t *testing.T) {
	var verrs ValidationErrors
	assert.False(t, verrs.HasErrors())
	assert.Empty(t, verrs.Error())
}
