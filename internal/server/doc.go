// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package server manages the lifecycle of the HTTP listeners: non-blocking
// startup, TLS support, graceful shutdown, and SIGINT/SIGTERM handling.
package server
