// Package settings persists the client state that lives outside the
// conference database: the last applied digest, sync bookkeeping and the
// active account.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// State is the persisted client state.
type State struct {
	// Digest is the digest of the last applied document set. Empty forces
	// the next reconciliation to apply.
	Digest string `yaml:"digest,omitempty"`

	// DataTimestamp is the feed's own version stamp of the applied data.
	DataTimestamp string `yaml:"data_timestamp,omitempty"`

	LastSync      time.Time `yaml:"last_sync,omitempty"`
	BootstrapDone bool      `yaml:"bootstrap_done"`

	// BootstrapPath is the applied bootstrap document. Every later sync
	// reconciles the feed on top of it.
	BootstrapPath string `yaml:"bootstrap_path,omitempty"`

	// Account is the signed-in account, or empty before sign-in.
	Account string `yaml:"account,omitempty"`
}

// Invalidate clears everything that vouches for the applied data.
func (s *State) Invalidate() {
	s.Digest = ""
	s.DataTimestamp = ""
}

// Store loads and updates State.
type Store interface {
	Load(ctx context.Context) (State, error)
	Update(ctx context.Context, fn func(*State)) error
}

// File keeps State in a YAML file. Writes go to a temporary file that is
// renamed over the target, so a crash never leaves a torn file.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File backed by path. The file is created on first
// update.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

// Load reads the state. A missing file yields the zero State.
func (f *File) Load(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read settings: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	return st, nil
}

// Update applies fn to the stored state and writes the result.
func (f *File) Update(ctx context.Context, fn func(*State)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := f.load()
	if err != nil {
		return err
	}
	fn(&st)

	data, err := yaml.Marshal(&st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Memory keeps State in memory.
type Memory struct {
	mu    sync.Mutex
	state State
}

// NewMemory returns a Memory holding initial.
func NewMemory(initial State) *Memory {
	return &Memory{state: initial}
}

func (m *Memory) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *Memory) Update(ctx context.Context, fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	return nil
}
