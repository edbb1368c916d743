// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm provides the provider-agnostic interface the Analyzer and
// Summary Engine use to call out to an LLM. Unlike a conversational
// agent, both callers issue single-shot system+user prompt completions
// and expect a text response back; there is no tool calling, no
// multi-turn history, and no streaming.
package llm

import (
	"context"
	"fmt"

	"github.com/kadirpekel/caseflow/internal/config"
)

// Provider performs a single-shot completion against one LLM backend.
type Provider interface {
	// Complete sends a system instruction and a user prompt and returns
	// the model's text response and the total tokens billed.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, tokens int, err error)

	ModelName() string
}

// NewFromConfig builds a Provider for the named backend in cfg.Provider.
func NewFromConfig(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (supported: anthropic, openai)", cfg.Provider)
	}
}
