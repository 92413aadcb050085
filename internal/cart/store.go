package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists a single cart between sessions.
type Store interface {
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context) error
}

// FileStore keeps the cart as a JSON document on disk. Writes go through a
// temporary file and a rename so a crash never leaves a torn cart.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", s.path, err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

func (s *FileStore) Save(_ context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cart-*.json")
	if err != nil {
		return fmt.Errorf("create temp cart: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cart: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := New()
	if s.data == nil {
		return c, nil
	}
	if err := json.Unmarshal(s.data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Save stores a snapshot; later changes to c are not visible until saved again.
func (s *MemoryStore) Save(_ context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}
