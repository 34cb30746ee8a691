/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadAbsent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	_, found, err := backend.Read(ctx, Key{CoupleID: "abc123", Game: WouldYouRather})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryWriteThenRead(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	doc := merged(Document{Initiator: "alice"}, RoleA, "a")
	require.NoError(t, backend.Write(ctx, key, doc))

	got, found, err := backend.Read(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc, got)
}

func TestMemoryReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	require.NoError(t, backend.Write(ctx, key, merged(Document{}, RoleA, "a")))

	first, _, err := backend.Read(ctx, key)
	require.NoError(t, err)
	*first.Choices.A = "tampered"

	second, _, err := backend.Read(ctx, key)
	require.NoError(t, err)

	choice, ok := second.Choices.Get(RoleA)
	require.True(t, ok)
	assert.Equal(t, "a", choice)
}

func TestWritePublishesToSubscribers(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), NewRegistry())
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	var aliceSaw, bobSaw []Document

	cancelAlice := store.Subscribe(key, func(doc Document) {
		aliceSaw = append(aliceSaw, doc)
	})
	defer cancelAlice()

	cancelBob := store.Subscribe(key, func(doc Document) {
		bobSaw = append(bobSaw, doc)
	})
	defer cancelBob()

	doc := merged(Document{}, RoleA, "a")
	require.NoError(t, store.Write(ctx, key, doc))

	require.Len(t, aliceSaw, 1)
	require.Len(t, bobSaw, 1)
	assert.Equal(t, doc, aliceSaw[0])
	assert.Equal(t, doc, bobSaw[0])
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), NewRegistry())
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	var seen int
	cancel := store.Subscribe(key, func(Document) {
		seen++
	})

	require.NoError(t, store.Write(ctx, key, Document{}))
	cancel()
	require.NoError(t, store.Write(ctx, key, Document{RoundIndex: 1}))

	assert.Equal(t, 1, seen)
}

func TestPublishScopedToKey(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemory(), NewRegistry())

	var wrongCouple, wrongGame int

	cancelCouple := store.Subscribe(Key{CoupleID: "xyz789", Game: WouldYouRather}, func(Document) {
		wrongCouple++
	})
	defer cancelCouple()

	cancelGame := store.Subscribe(Key{CoupleID: "abc123", Game: TruthOrDare}, func(Document) {
		wrongGame++
	})
	defer cancelGame()

	require.NoError(t, store.Write(ctx, Key{CoupleID: "abc123", Game: WouldYouRather}, Document{}))

	assert.Zero(t, wrongCouple)
	assert.Zero(t, wrongGame)
}

func TestFailedWriteDoesNotPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore(NewMemory(), NewRegistry())
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	var seen int
	unsubscribe := store.Subscribe(key, func(Document) {
		seen++
	})
	defer unsubscribe()

	require.Error(t, store.Write(ctx, key, Document{}))
	assert.Zero(t, seen)
}
