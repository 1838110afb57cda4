// =============================================================================
// AgentHub configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTHUB").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structures
// =============================================================================

// Config is the complete AgentHub service configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Storage holds persistence paths for agent and MCP definitions.
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// Memory holds conversation memory settings.
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Redis holds redis connection settings for the redis memory backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// History holds execution history settings.
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// LLM holds default model backend settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// MCP holds tool server supervision settings.
	MCP MCPConfig `yaml:"mcp" env:"MCP"`

	// Auth holds API authentication settings.
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORSAllowedOrigins lists origins allowed for cross-origin requests.
	// Empty means cross-origin requests are refused.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	// DataDir is the root directory for JSON stores and file memory.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	// AgentsFile overrides the agents store path. Relative to DataDir when unset.
	AgentsFile string `yaml:"agents_file" env:"AGENTS_FILE"`
	// ServersFile overrides the MCP servers store path.
	ServersFile string `yaml:"servers_file" env:"SERVERS_FILE"`
	// MetricsFile overrides the agent metrics store path.
	MetricsFile string `yaml:"metrics_file" env:"METRICS_FILE"`
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	// Backend selects the persistence backend: file or redis.
	Backend string `yaml:"backend" env:"BACKEND"`
	// Dir is the directory for the file backend. Relative to Storage.DataDir when unset.
	Dir string `yaml:"dir" env:"DIR"`
	// DefaultMaxTokens is the token budget applied when an agent does not set one.
	DefaultMaxTokens int `yaml:"default_max_tokens" env:"DEFAULT_MAX_TOKENS"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// HistoryConfig holds execution history settings.
type HistoryConfig struct {
	// Enabled turns on sqlite-backed execution history.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Path is the sqlite database file. Relative to Storage.DataDir when unset.
	Path string `yaml:"path" env:"PATH"`
	// MaxRecords caps the number of retained executions per agent. 0 keeps all.
	MaxRecords int `yaml:"max_records" env:"MAX_RECORDS"`
}

// LLMConfig holds default model backend settings.
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// MCPConfig holds tool server supervision settings.
type MCPConfig struct {
	// HealthInterval is the period between background health probes.
	HealthInterval time.Duration `yaml:"health_interval" env:"HEALTH_INTERVAL"`
	// StartTimeout bounds how long a server may take to become reachable.
	StartTimeout time.Duration `yaml:"start_timeout" env:"START_TIMEOUT"`
	// StopTimeout bounds graceful subprocess termination before SIGKILL.
	StopTimeout time.Duration `yaml:"stop_timeout" env:"STOP_TIMEOUT"`
	// CallTimeout is the default deadline for proxied tool calls.
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// Enabled turns on request authentication.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// APIKeys lists accepted X-API-Key values.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWTSecret enables bearer token auth when non-empty.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap output sinks.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with the call site.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// EnableStacktrace attaches stack traces at error level.
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Configuration loader
// =============================================================================

// Loader loads configuration using the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTHUB",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads configuration with precedence defaults -> file -> env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file. A missing file is not
// an error, the defaults apply.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overrides configuration from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct recursively, mapping env tags to
// PREFIX_SECTION_FIELD variables.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses an environment string into a struct field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration fields accept Go duration syntax
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks cross-field consistency of the loaded configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Memory.Backend != "file" && c.Memory.Backend != "redis" {
		errs = append(errs, "memory backend must be file or redis")
	}
	if c.Memory.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "redis backend requires redis.addr")
	}
	if c.Memory.DefaultMaxTokens < 100 || c.Memory.DefaultMaxTokens > 10000 {
		errs = append(errs, "memory default_max_tokens must be between 100 and 10000")
	}
	if c.MCP.HealthInterval <= 0 {
		errs = append(errs, "mcp health_interval must be positive")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth enabled but no api_keys or jwt_secret configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AgentsPath returns the resolved agents store path.
func (c *Config) AgentsPath() string {
	return resolvePath(c.Storage.DataDir, c.Storage.AgentsFile, "agents.json")
}

// ServersPath returns the resolved MCP servers store path.
func (c *Config) ServersPath() string {
	return resolvePath(c.Storage.DataDir, c.Storage.ServersFile, "mcp_servers.json")
}

// MetricsPath returns the resolved agent metrics store path.
func (c *Config) MetricsPath() string {
	return resolvePath(c.Storage.DataDir, c.Storage.MetricsFile, "metrics.json")
}

// MemoryDir returns the resolved file memory directory.
func (c *Config) MemoryDir() string {
	return resolvePath(c.Storage.DataDir, c.Memory.Dir, "memory")
}

// HistoryPath returns the resolved execution history database path.
func (c *Config) HistoryPath() string {
	return resolvePath(c.Storage.DataDir, c.History.Path, "history.db")
}

func resolvePath(dataDir, override, name string) string {
	if override != "" {
		return override
	}
	return dataDir + "/" + name
}
