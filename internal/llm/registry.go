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

package llm

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/caseflow/internal/config"
)

// Registry holds the configured named LLM providers; the Analyzer and
// Summary Engine each look up the provider they need by name (e.g.
// "analyzer", "summarizer") rather than hard-coding a backend.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// LoadFromConfig builds and registers a Provider for every entry in cfg.
func (r *Registry) LoadFromConfig(cfg map[string]*config.LLMConfig) error {
	for name, llmCfg := range cfg {
		provider, err := NewFromConfig(llmCfg)
		if err != nil {
			return fmt.Errorf("loading LLM provider %q: %w", name, err)
		}
		r.Register(name, provider)
	}
	return nil
}

func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q not configured", name)
	}
	return provider, nil
}
