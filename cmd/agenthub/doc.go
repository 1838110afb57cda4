// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Command agenthub runs the agent service: agent CRUD and execution
// over HTTP, SSE, and WebSocket, plus the MCP tool server registry.
package main
