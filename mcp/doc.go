// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package mcp supervises MCP (Model Context Protocol) tool servers.
//
// Stdio servers are spawned as child processes and spoken to over
// JSON-RPC 2.0 with Content-Length framed messages. HTTP servers are
// externally managed endpoints reached over a small REST surface.
// The Manager tracks lifecycle state for both kinds and proxies tool
// calls and resource reads to the right server.
package mcp
