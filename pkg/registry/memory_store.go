package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
)

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]*eventtype.EventType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]*eventtype.EventType),
	}
}

func (s *MemoryStore) Get(_ context.Context, name string) (*eventtype.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[name]
	if !ok {
		return nil, ErrNotFound
	}
	return h[len(h)-1].Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, et *eventtype.EventType) error {
	if err := checkWrite(et, 0); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[et.Name]; ok {
		return ErrAlreadyExists
	}
	s.history[et.Name] = []*eventtype.EventType{et.Clone()}
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, expected int64, et *eventtype.EventType) error {
	if err := checkWrite(et, expected); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.history[et.Name]
	if !ok {
		return ErrNotFound
	}
	if h[len(h)-1].Revision != expected {
		return ErrVersionConflict
	}
	s.history[et.Name] = append(h, et.Clone())
	return nil
}

func (s *MemoryStore) History(_ context.Context, name string) ([]*eventtype.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]*eventtype.EventType, len(h))
	for i, et := range h {
		out[i] = et.Clone()
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*eventtype.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*eventtype.EventType, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, h[len(h)-1].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
