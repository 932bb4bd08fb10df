package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var _ Store = (*Local)(nil)

// Local keeps artifacts on the local filesystem. The document bytes live in
// <root>/<id>.docx and the user-facing filename in <root>/<id>.name.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) dataPath(id string) string {
	return filepath.Join(l.root, id+".docx")
}

func (l *Local) namePath(id string) string {
	return filepath.Join(l.root, id+".name")
}

func (l *Local) Put(_ context.Context, id string, a *Artifact) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.WriteFile(l.dataPath(id), a.Data, 0o644); err != nil {
		return err
	}
	return os.WriteFile(l.namePath(id), []byte(a.Filename), 0o644)
}

func (l *Local) Get(_ context.Context, id string) (*Artifact, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.dataPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	name, err := os.ReadFile(l.namePath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &Artifact{
		Filename: strings.TrimSpace(string(name)),
		Data:     data,
	}, nil
}

func (l *Local) Exists(_ context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(l.dataPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	for _, p := range []string{l.dataPath(id), l.namePath(id)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
