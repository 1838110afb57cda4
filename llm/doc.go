// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package llm defines the provider abstraction for chat model backends.
// Concrete implementations live in the providers package.
package llm
