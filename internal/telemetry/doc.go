// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package telemetry initializes the OpenTelemetry SDK. It wires OTLP gRPC
// exporters for traces and metrics when telemetry is enabled, and leaves
// the global providers as noops otherwise.
package telemetry
