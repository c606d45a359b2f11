// Package objectstore stores published assessment snapshots.
package objectstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Store uploads an object and returns a URL where it can be read back
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Object is a stored blob held by Memory
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Store
type Memory struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]Object
	err     error
}

// NewMemory creates an empty in-memory store
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string]Object)}
}

// Put stores a copy of data
func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objects[key] = Object{Data: slices.Clone(data), ContentType: contentType}
	return fmt.Sprintf("memory://%s/%s", m.bucket, key), nil
}

// Get returns a stored object
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys in order
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.objects))
}

// FailWith makes later Puts return err; nil restores normal behaviour
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
