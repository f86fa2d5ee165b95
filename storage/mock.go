package storage

import (
	"context"
	"sync"
)

// Mock is an in-memory Storage, used by this repo's own tests in place of a real Redis/S3/disk
// backend.
type Mock struct {
	data sync.Map
}

// NewMock returns an empty in-memory store.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Read(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v.([]byte), nil
}

func (m *Mock) Write(ctx context.Context, key string, value []byte, opts *Options) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data.Store(key, cp)
	return nil
}

func (m *Mock) Remove(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}
