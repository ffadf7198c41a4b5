package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store keeps exported blueprint documents.
type Store interface {
	Put(ctx context.Context, userID, id string, doc []byte) error
	Get(ctx context.Context, userID, id string) ([]byte, error)
	// URL returns a time-limited download link, or "" when the backend
	// cannot serve one.
	URL(ctx context.Context, userID, id string) (string, error)
}

var ErrNotFound = errors.New("export not found")

func objectKey(userID, id string) (string, error) {
	userID = strings.Trim(strings.TrimSpace(userID), "/")
	id = strings.Trim(strings.TrimSpace(id), "/")
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}
	if id == "" {
		return "", fmt.Errorf("id is required")
	}
	return "blueprints/" + userID + "/" + id + ".json", nil
}

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, userID, id string, doc []byte) error {
	key, err := objectKey(userID, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), doc...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) ([]byte, error) {
	key, err := objectKey(userID, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (s *MemoryStore) URL(context.Context, string, string) (string, error) {
	return "", nil
}
