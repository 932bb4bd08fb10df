package llm

import (
	"context"
	"fmt"
	"sync"
)

var _ Generator = (*Mux)(nil)

// Mux routes model names to registered backends. The zero value is ready to
// use. Registration is expected at startup; lookups are concurrency-safe.
type Mux struct {
	mu       sync.RWMutex
	backends map[string]Generator
	fallback Generator
}

// Handle binds a model name to a backend. An empty name sets the fallback
// used for model names with no explicit binding.
func (m *Mux) Handle(model string, g Generator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if model == "" {
		m.fallback = g
		return
	}
	if m.backends == nil {
		m.backends = make(map[string]Generator)
	}
	m.backends[model] = g
}

func (m *Mux) lookup(model string) (Generator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.backends[model]; ok {
		return g, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return nil, fmt.Errorf("llm: no backend for model %q", model)
}

func (m *Mux) GenerateStream(ctx context.Context, model string, mctx ModelContext) (Stream, error) {
	g, err := m.lookup(model)
	if err != nil {
		return nil, err
	}
	return g.GenerateStream(ctx, model, mctx)
}

func (m *Mux) Invoke(ctx context.Context, model string, mctx ModelContext, shape *Shape) (Usage, string, error) {
	g, err := m.lookup(model)
	if err != nil {
		return Usage{}, "", err
	}
	return g.Invoke(ctx, model, mctx, shape)
}
