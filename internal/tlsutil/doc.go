// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package tlsutil builds the outbound HTTP clients used across the
// service, with hardened TLS settings (TLS 1.2+, AEAD cipher suites
// only) and shared connection pooling.
package tlsutil
