// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package agent executes configured agents: it assembles the model
// context from the system prompt and memory, runs the tool-calling
// loop against the configured LLM backend, and dispatches tool calls
// to builtin tools or MCP servers.
package agent
