// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package metrics exposes the Prometheus instrumentation for the HTTP
// layer, agent executions, and tool invocations. A Collector owns its
// own registry and serves it through the standard promhttp handler.
package metrics
