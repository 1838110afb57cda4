// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package api assembles the HTTP surface of the service: request and
// response DTOs plus the router that mounts the versioned handlers.
package api
