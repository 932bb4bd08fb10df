package convstore

import (
	"context"
	_ "embed"
	"errors"

	"github.com/protoscribe/protoscribe/pkg/kv"
)

//go:embed default_instruction.md
var defaultInstruction string

func instructionKey() kv.Key {
	return kv.Key{"instruction", "default"}
}

// Instruction returns the behavioral instruction used when building the chat
// model context. The stored override wins; otherwise the embedded default is
// written to the store and returned. The resolved value is cached until
// UpdateInstruction replaces it.
func (s *Store) Instruction(ctx context.Context) (string, error) {
	s.instrMu.RLock()
	if s.instrLoaded {
		instr := s.instr
		s.instrMu.RUnlock()
		return instr, nil
	}
	s.instrMu.RUnlock()

	s.instrMu.Lock()
	defer s.instrMu.Unlock()
	if s.instrLoaded {
		return s.instr, nil
	}

	data, err := s.kv.Get(ctx, instructionKey())
	switch {
	case errors.Is(err, kv.ErrNotFound):
		if err := s.kv.Set(ctx, instructionKey(), []byte(defaultInstruction)); err != nil {
			return "", err
		}
		s.instr = defaultInstruction
	case err != nil:
		return "", err
	default:
		s.instr = string(data)
	}
	s.instrLoaded = true
	return s.instr, nil
}

// UpdateInstruction replaces the stored instruction and the cached copy.
func (s *Store) UpdateInstruction(ctx context.Context, content string) error {
	s.instrMu.Lock()
	defer s.instrMu.Unlock()
	if err := s.kv.Set(ctx, instructionKey(), []byte(content)); err != nil {
		return err
	}
	s.instr = content
	s.instrLoaded = true
	return nil
}
