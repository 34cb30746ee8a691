/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import "context"

// Backend is the persistent document store behind a Store: upsert-by-key
// semantics, one document per key, nothing more. Errors propagate to the
// caller unchanged; retries, if any, belong to the backend itself.
type Backend interface {
	Read(ctx context.Context, key Key) (Document, bool, error)
	Write(ctx context.Context, key Key, doc Document) error
	Close() error
}

// Store pairs a Backend with a Channel. Every successful write is published
// to the channel as a side effect, so both partners' connected clients see
// the change without polling; propagation is not a separately callable
// operation.
type Store struct {
	backend Backend
	channel Channel
}

// NewStore wires a backend to a propagation channel.
func NewStore(backend Backend, channel Channel) *Store {
	return &Store{
		backend: backend,
		channel: channel,
	}
}

// Read returns the document for key, or found=false when absent.
func (s *Store) Read(ctx context.Context, key Key) (Document, bool, error) {
	return s.backend.Read(ctx, key)
}

// Write upserts the full document for key and fans the change out to all
// current subscribers. Nothing is published when the backend write fails.
func (s *Store) Write(ctx context.Context, key Key, doc Document) error {
	if err := s.backend.Write(ctx, key, doc); err != nil {
		return err
	}
	s.channel.Publish(key, doc)
	return nil
}

// Subscribe registers fn to be called with the new document whenever a
// write lands for key. The returned cancel releases the subscription and
// must be called when the listener goes away.
func (s *Store) Subscribe(key Key, fn func(Document)) func() {
	return s.channel.Subscribe(key, fn)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
