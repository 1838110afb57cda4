// Package config provides configuration management for AgentHub.
//
// Configuration is loaded from defaults, an optional YAML file, and
// environment variable overrides, in that order of precedence.
package config
