package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/syncbridge/pkg/logger"
)

// DefaultEnvPrefix is prepended to every env tag.
const DefaultEnvPrefix = "SB_"

// Backoff strategies for retry delays.
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// DefaultExcluded lists the administrative operations that are never wrapped.
var DefaultExcluded = []string{
	"domain", "_events", "_maxListeners", "setMaxListeners", "emit",
	"addListener", "on", "once", "removeListener", "removeAllListeners", "listeners",
}

// Config represents the complete configuration of the sync bridge.
type Config struct {
	Sync     bool           `yaml:"sync" env:"SYNC"`
	Retries  int            `yaml:"retries" env:"RETRIES"`
	Retry    RetryConfig    `yaml:"retry"`
	Commands CommandsConfig `yaml:"commands"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RetryConfig holds the delay applied between retries of a spec or hook body.
type RetryConfig struct {
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY"`
	Backoff  string        `yaml:"backoff" env:"RETRY_BACKOFF"`
	MaxDelay time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY"`
}

// CommandsConfig holds command wrapping options.
type CommandsConfig struct {
	Excluded   []string `yaml:"excluded" env:"COMMANDS_EXCLUDED"`
	RawResult  []string `yaml:"raw_result" env:"COMMANDS_RAW_RESULT"`
	WaitPrefix string   `yaml:"wait_prefix" env:"COMMANDS_WAIT_PREFIX"`
	Metrics    bool     `yaml:"metrics" env:"COMMANDS_METRICS"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Sync:    true,
		Retries: 0,
		Retry: RetryConfig{
			Delay:    0,
			Backoff:  BackoffFixed,
			MaxDelay: 0,
		},
		Commands: CommandsConfig{
			Excluded:   append([]string(nil), DefaultExcluded...),
			RawResult:  []string{"reload"},
			WaitPrefix: "wait",
			Metrics:    true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoggerConfig converts the logging section into a logger configuration.
func (c LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	overrides  map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		overrides: make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the prefix for environment variables.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithOverrides sets explicit dot-notation overrides, e.g. "retry.backoff".
func (l *Loader) WithOverrides(overrides map[string]string) *Loader {
	l.overrides = overrides
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < explicit overrides
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for key, value := range l.overrides {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnvToStruct recursively applies prefixed environment variables to
// tagged struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		name := l.envPrefix + envTag
		envValue := os.Getenv(name)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", name, fieldType.Name, err)
		}
	}

	return nil
}

// setConfigValue sets a configuration value by its dot-notation yaml path.
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		field.Set(reflect.ValueOf(out))

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone, _ := ParseConfig(data)
	return clone
}
