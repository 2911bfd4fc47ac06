package resultstore

import (
	"context"
	"sync"

	"github.com/theralink/sessionkit/types"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for development, testing, and single-client
// use. For results shared across processes, use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	logs     map[types.Modality][]*types.AnalysisResult
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity overrides the per-modality retention cap.
func WithCapacity(capacity int) MemoryOption {
	return func(s *MemoryStore) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		capacity: DefaultCapacity,
		logs:     make(map[types.Modality][]*types.AnalysisResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds one result, evicting the oldest entry at capacity.
func (s *MemoryStore) Append(_ context.Context, modality types.Modality, result *types.AnalysisResult) error {
	if modality == "" {
		return ErrInvalidModality
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.logs[modality], result)
	if len(log) > s.capacity {
		log = log[len(log)-s.capacity:]
	}
	s.logs[modality] = log
	return nil
}

// Recent returns up to n results, newest first.
func (s *MemoryStore) Recent(_ context.Context, modality types.Modality, n int) ([]*types.AnalysisResult, error) {
	if modality == "" {
		return nil, ErrInvalidModality
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[modality]
	if n <= 0 || n > len(log) {
		n = len(log)
	}

	out := make([]*types.AnalysisResult, 0, n)
	for i := len(log) - 1; i >= len(log)-n; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

// Count returns the number of retained results for the modality.
func (s *MemoryStore) Count(_ context.Context, modality types.Modality) (int, error) {
	if modality == "" {
		return 0, ErrInvalidModality
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[modality]), nil
}

// Close implements Store. A MemoryStore holds no external resources.
func (s *MemoryStore) Close() error {
	return nil
}
