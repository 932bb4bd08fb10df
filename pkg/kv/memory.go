package kv

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store for tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[string(encode(key))]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	val := make([]byte, len(value))
	copy(val, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(encode(key))] = val
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(encode(key)))
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := string(encode(prefix))
	if p != "" {
		p += string(Separator)
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	return func(yield func(Entry, error) bool) {
		for _, k := range keys {
			m.mu.RLock()
			val, ok := m.data[k]
			m.mu.RUnlock()
			if !ok {
				continue
			}
			out := make([]byte, len(val))
			copy(out, val)
			if !yield(Entry{Key: decode([]byte(k)), Value: out}, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
