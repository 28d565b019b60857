package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// JSONStore keeps all people in a single JSON file. Good enough for a
// single-process deployment; a file lock guards against a second process
// opening the same file.
type JSONStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

func OpenJSON(path string) (*JSONStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("store %s is locked by another process", path)
	}

	s := &JSONStore{path: path, lock: lock}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(nil); err != nil {
			_ = lock.Unlock()
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) load() ([]Person, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	var people []Person
	if err := json.Unmarshal(data, &people); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	return people, nil
}

func (s *JSONStore) save(people []Person) error {
	if people == nil {
		people = []Person{}
	}
	data, err := json.MarshalIndent(people, "", "    ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONStore) ListByOwner(ctx context.Context, ownerID string) ([]Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	people, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Person
	for _, p := range people {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *JSONStore) Create(ctx context.Context, p Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	people, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range people {
		if existing.ID == p.ID {
			return fmt.Errorf("person %s already exists", p.ID)
		}
	}
	return s.save(append(people, p))
}

func (s *JSONStore) Update(ctx context.Context, id string, fields Fields) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	people, err := s.load()
	if err != nil {
		return Person{}, err
	}
	for i := range people {
		if people[i].ID != id {
			continue
		}
		if fields.Name != nil {
			people[i].Name = *fields.Name
		}
		if fields.Age != nil {
			people[i].Age = fields.Age
		}
		if err := s.save(people); err != nil {
			return Person{}, err
		}
		return people[i], nil
	}
	return Person{}, ErrNotFound
}

func (s *JSONStore) Close() error {
	return s.lock.Unlock()
}
