// Copyright (c) AgentHub Authors.
// Licensed under the MIT License.

// Package memory persists per-agent conversation history and builds the
// model context within a token budget.
//
// Two backends are available: a JSON file per agent, and a redis list.
// Two policies shape the context: buffer keeps the most recent turns
// that fit the budget, summary condenses older turns into a synopsis.
package memory
