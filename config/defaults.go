// =============================================================================
// AgentHub default configuration
// =============================================================================
// Sensible defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Storage:   DefaultStorageConfig(),
		Memory:    DefaultMemoryConfig(),
		Redis:     DefaultRedisConfig(),
		History:   DefaultHistoryConfig(),
		LLM:       DefaultLLMConfig(),
		MCP:       DefaultMCPConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultStorageConfig returns the default storage configuration.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir: "data",
	}
}

// DefaultMemoryConfig returns the default memory configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Backend:          "file",
		DefaultMaxTokens: 2000,
	}
}

// DefaultRedisConfig returns the default redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultHistoryConfig returns the default execution history configuration.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:    true,
		MaxRecords: 1000,
	}
}

// DefaultLLMConfig returns the default LLM configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "groq",
		Timeout:         120 * time.Second,
		MaxRetries:      3,
	}
}

// DefaultMCPConfig returns the default MCP supervision configuration.
func DefaultMCPConfig() MCPConfig {
	return MCPConfig{
		HealthInterval: 30 * time.Second,
		StartTimeout:   30 * time.Second,
		StopTimeout:    5 * time.Second,
		CallTimeout:    60 * time.Second,
	}
}

// DefaultAuthConfig returns the default auth configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled: false,
	}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     false,
		ServiceName: "agenthub",
		SampleRate:  1.0,
	}
}
