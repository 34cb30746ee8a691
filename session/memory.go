/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"sync"
)

// Memory is an in-memory Backend, used when no database path is configured
// and throughout the tests. Documents do not survive a restart.
type Memory struct {
	mu   sync.RWMutex
	docs map[Key]Document
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[Key]Document),
	}
}

// Read implements Backend.
func (m *Memory) Read(ctx context.Context, key Key) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, found := m.docs[key]
	if !found {
		return Document{}, false, nil
	}
	return doc.clone(), true, nil
}

// Write implements Backend. Whole-document replace, last writer wins.
func (m *Memory) Write(ctx context.Context, key Key, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[key] = doc.clone()
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}
