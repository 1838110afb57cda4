// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package history persists finished agent executions in a sqlite
// database with per-agent retention.
package history
