// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package handlers implements the HTTP handlers behind /api/v1.
package handlers
