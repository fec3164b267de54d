package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
)

type memoryEntry struct {
	payload []byte
	version int64
}

// memoryRepository keeps encoded snapshots so callers never share slices with it.
type memoryRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory() port.SnapshotRepository {
	return &memoryRepository{
		entries: make(map[string]memoryEntry),
	}
}

func (r *memoryRepository) Load(_ context.Context, key string) (domain.Snapshot, error) {
	if key == "" {
		return domain.Snapshot{}, fmt.Errorf("key is empty")
	}

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return domain.Snapshot{}, port.ErrSnapshotNotFound
	}

	cart, err := decodeCart(entry.payload)
	if err != nil {
		return domain.Snapshot{Version: entry.version}, fmt.Errorf("decodeCart: %w", err)
	}

	return domain.Snapshot{
		Cart:    cart,
		Version: entry.version,
	}, nil
}

func (r *memoryRepository) Save(_ context.Context, key string, cart domain.Cart, expectedVersion int64) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key is empty")
	}

	payload, err := encodeCart(cart)
	if err != nil {
		return 0, fmt.Errorf("encodeCart: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.entries[key].version
	if current != expectedVersion {
		return 0, fmt.Errorf("stored version %d, expected %d: %w", current, expectedVersion, port.ErrVersionConflict)
	}

	next := expectedVersion + 1
	r.entries[key] = memoryEntry{payload: payload, version: next}

	return next, nil
}
