package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/olasquare/olasquare/internal/domain"
)

// ThreadStore is the conversation store the dispatcher reads and appends to.
// Threads are created on first Append and messages are never rewritten.
type ThreadStore interface {
	// Append adds messages to the end of a thread.
	Append(ctx context.Context, threadID string, msgs ...domain.Message) error

	// History returns the thread's messages in append order. An unknown
	// thread has an empty history.
	History(ctx context.Context, threadID string) ([]domain.Message, error)

	// Get returns the thread, or domain.ErrThreadNotFound.
	Get(ctx context.Context, threadID string) (*domain.Thread, error)

	// List summarises all threads, most recently updated first.
	List(ctx context.Context) ([]domain.ThreadSummary, error)
}

// MemoryThreadStore is an in-memory ThreadStore implementation.
type MemoryThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*domain.Thread
}

// NewMemoryThreadStore creates an in-memory thread store.
func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{threads: make(map[string]*domain.Thread)}
}

func (s *MemoryThreadStore) Append(_ context.Context, threadID string, msgs ...domain.Message) error {
	if threadID == "" {
		return errors.New("thread id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	th, ok := s.threads[threadID]
	if !ok {
		th = &domain.Thread{ID: threadID, CreatedAt: now}
		s.threads[threadID] = th
	}
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		th.Messages = append(th.Messages, m)
	}
	th.UpdatedAt = now
	return nil
}

func (s *MemoryThreadStore) History(_ context.Context, threadID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.threads[threadID]
	if !ok {
		return []domain.Message{}, nil
	}
	return append([]domain.Message(nil), th.Messages...), nil
}

func (s *MemoryThreadStore) Get(_ context.Context, threadID string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrThreadNotFound, threadID)
	}
	cp := *th
	cp.Messages = append([]domain.Message(nil), th.Messages...)
	return &cp, nil
}

func (s *MemoryThreadStore) List(_ context.Context) ([]domain.ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ThreadSummary, 0, len(s.threads))
	for _, th := range s.threads {
		out = append(out, domain.ThreadSummary{
			ID:           th.ID,
			MessageCount: len(th.Messages),
			UpdatedAt:    th.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
