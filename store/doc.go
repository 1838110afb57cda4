// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package store provides JSON file backed persistence for agent
// definitions, MCP server definitions, and per-agent metrics.
//
// Writes are atomic: data is written to a temp file in the same
// directory and renamed over the target.
package store
