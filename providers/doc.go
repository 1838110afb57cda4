// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package providers implements chat model backends.
//
// Every supported backend (Groq, OpenAI, self-hosted gateways, local
// runtimes) speaks the OpenAI chat completions wire format, so a single
// implementation parameterized by base URL covers them all.
package providers
