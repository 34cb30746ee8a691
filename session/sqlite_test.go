/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

func TestSQLiteReadAbsent(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)

	_, found, err := backend.Read(ctx, Key{CoupleID: "abc123", Game: WouldYouRather})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteUpsert(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)
	key := Key{CoupleID: "abc123", Game: WouldYouRather}

	first := merged(Document{Initiator: "alice"}, RoleA, "a")
	require.NoError(t, backend.Write(ctx, key, first))

	got, found, err := backend.Read(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first, got)

	// Second write for the same key replaces the whole document.
	second := advanced(merged(first, RoleB, "b"), 3)
	require.NoError(t, backend.Write(ctx, key, second))

	got, found, err = backend.Read(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, got)
}

func TestSQLiteKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	backend := openTestSQLite(t)

	require.NoError(t, backend.Write(ctx,
		Key{CoupleID: "abc123", Game: WouldYouRather},
		Document{RoundIndex: 2, Revealed: false},
	))
	require.NoError(t, backend.Write(ctx,
		Key{CoupleID: "abc123", Game: TruthOrDare},
		Document{RoundIndex: 5, Revealed: false},
	))

	doc, found, err := backend.Read(ctx, Key{CoupleID: "abc123", Game: WouldYouRather})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, doc.RoundIndex)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")
	key := Key{CoupleID: "abc123", Game: LoveQuiz}

	backend, err := OpenSQLite(path)
	require.NoError(t, err)

	doc := merged(Document{Initiator: "alice"}, RoleB, "b")
	require.NoError(t, backend.Write(ctx, key, doc))
	require.NoError(t, backend.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := reopened.Read(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc, got)
}
