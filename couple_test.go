/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"testing"
	"time"

	"github.com/Seednode/couplebox/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T) (*Config, *Room) {
	t.Helper()

	cfg := &Config{
		partnerTimeout: time.Minute,
	}

	store := session.NewStore(session.NewMemory(), session.NewRegistry())

	rm, err := newRoomManager(store, session.WouldYouRather, 0)
	require.NoError(t, err)

	room := rm.getRoom(cfg, "abc123")
	require.NotNil(t, room)

	return cfg, room
}

func newTestClient(partnerID string) *Client {
	return &Client{
		send:      make(chan any, 16),
		partnerID: partnerID,
	}
}

// drain empties a client's send channel without blocking.
func drain(c *Client) []any {
	var out []any
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func currentDoc(t *testing.T, room *Room) session.Document {
	t.Helper()

	doc, found, err := room.sess.Current(context.Background())
	require.NoError(t, err)
	require.True(t, found)

	return doc
}

func lastStateFor(t *testing.T, c *Client) SessionStateMessage {
	t.Helper()

	var state SessionStateMessage
	var found bool
	for _, msg := range drain(c) {
		if s, ok := msg.(SessionStateMessage); ok {
			state = s
			found = true
		}
	}
	require.True(t, found, "expected a session_state message")

	return state
}

func TestSeatsAssignedInArrivalOrder(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	bob := newTestClient("bob")

	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, bob)

	doc := currentDoc(t, room)
	assert.Equal(t, "alice", doc.Couple.A)
	assert.Equal(t, "bob", doc.Couple.B)

	var info SessionInfoMessage
	for _, msg := range drain(alice) {
		if m, ok := msg.(SessionInfoMessage); ok {
			info = m
		}
	}
	assert.Equal(t, "a", info.Role)
	assert.Equal(t, "abc123", info.CoupleID)
}

func TestThirdWheelRefused(t *testing.T) {
	cfg, room := newTestRoom(t)

	room.handleRegister(cfg, newTestClient("alice"))
	room.handleRegister(cfg, newTestClient("bob"))

	mallory := newTestClient("mallory")
	room.handleRegister(cfg, mallory)

	msgs := drain(mallory)
	require.NotEmpty(t, msgs)

	full, ok := msgs[0].(SimpleMessage)
	require.True(t, ok)
	assert.Equal(t, "couple_full", full.Type)

	_, stillSeated := currentDoc(t, room).Couple.RoleOf("mallory")
	assert.False(t, stillSeated)
}

func TestReconnectKeepsSeat(t *testing.T) {
	cfg, room := newTestRoom(t)

	room.handleRegister(cfg, newTestClient("alice"))
	room.handleRegister(cfg, newTestClient("bob"))

	again := newTestClient("alice")
	room.handleRegister(cfg, again)

	var info SessionInfoMessage
	for _, msg := range drain(again) {
		if m, ok := msg.(SessionInfoMessage); ok {
			info = m
		}
	}
	assert.Equal(t, "a", info.Role)
	assert.True(t, info.PartnerPresent)
}

func TestPartnerChoiceHiddenUntilReveal(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, bob)

	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "start"}})
	drain(alice)
	drain(bob)

	choice := room.deck[0].Options[0]
	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "submit", Choice: choice}})

	aliceState := lastStateFor(t, alice)
	assert.Equal(t, choice, aliceState.YourChoice)
	assert.False(t, aliceState.Revealed)

	bobState := lastStateFor(t, bob)
	assert.True(t, bobState.PartnerAnswered)
	assert.Empty(t, bobState.PartnerChoice, "partner's answer must stay hidden before reveal")
	assert.Empty(t, bobState.YourChoice)
}

func TestBothAnswersVisibleAfterReveal(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, bob)

	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "start"}})

	first := room.deck[0].Options[0]
	second := room.deck[0].Options[1]
	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "submit", Choice: first}})
	room.handleAction(cfg, actionRequest{client: bob, msg: ClientMessage{Type: "submit", Choice: second}})

	aliceState := lastStateFor(t, alice)
	require.True(t, aliceState.Revealed)
	assert.Equal(t, first, aliceState.YourChoice)
	assert.Equal(t, second, aliceState.PartnerChoice)

	bobState := lastStateFor(t, bob)
	require.True(t, bobState.Revealed)
	assert.Equal(t, second, bobState.YourChoice)
	assert.Equal(t, first, bobState.PartnerChoice)
}

func TestAdvancePushesNextRoundToBoth(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, bob)

	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "start"}})
	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "submit", Choice: room.deck[0].Options[0]}})
	room.handleAction(cfg, actionRequest{client: bob, msg: ClientMessage{Type: "submit", Choice: room.deck[0].Options[1]}})
	drain(alice)
	drain(bob)

	room.handleAction(cfg, actionRequest{client: bob, msg: ClientMessage{Type: "advance"}})

	aliceState := lastStateFor(t, alice)
	assert.Equal(t, 1, aliceState.RoundIndex)
	assert.False(t, aliceState.Revealed)
	assert.Empty(t, aliceState.YourChoice)

	bobState := lastStateFor(t, bob)
	assert.Equal(t, 1, bobState.RoundIndex)
}

func TestHeartbeatRelayedToPartnerOnly(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	aliceTablet := newTestClient("alice")
	bob := newTestClient("bob")
	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, aliceTablet)
	room.handleRegister(cfg, bob)
	drain(alice)
	drain(aliceTablet)
	drain(bob)

	room.relayHeartbeat(alice)

	var bobBeats int
	for _, msg := range drain(bob) {
		if _, ok := msg.(HeartbeatMessage); ok {
			bobBeats++
		}
	}
	assert.Equal(t, 1, bobBeats)

	for _, msg := range drain(aliceTablet) {
		_, ok := msg.(HeartbeatMessage)
		assert.False(t, ok, "own devices must not receive their own heartbeat")
	}
}

func TestAbandonedSeatFreed(t *testing.T) {
	cfg, room := newTestRoom(t)

	alice := newTestClient("alice")
	room.handleRegister(cfg, alice)

	room.mu.Lock()
	delete(room.clients, alice)
	room.mu.Unlock()

	room.scheduleSeatRelease(cfg, "alice", 0)

	_, seated := currentDoc(t, room).Couple.RoleOf("alice")
	assert.False(t, seated)

	// A connected partner keeps their seat.
	bob := newTestClient("bob")
	room.handleRegister(cfg, bob)
	room.scheduleSeatRelease(cfg, "bob", 0)

	_, seated = currentDoc(t, room).Couple.RoleOf("bob")
	assert.True(t, seated)
}

func TestSeatsSurviveRoomRestart(t *testing.T) {
	cfg := &Config{partnerTimeout: time.Minute}
	store := session.NewStore(session.NewMemory(), session.NewRegistry())

	rm, err := newRoomManager(store, session.WouldYouRather, 0)
	require.NoError(t, err)
	room := rm.getRoom(cfg, "abc123")

	alice := newTestClient("alice")
	bob := newTestClient("bob")
	room.handleRegister(cfg, alice)
	room.handleRegister(cfg, bob)

	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "start"}})
	secret := room.deck[0].Options[0]
	room.handleAction(cfg, actionRequest{client: alice, msg: ClientMessage{Type: "submit", Choice: secret}})

	// Fresh manager over the same store, partners reconnecting in the
	// opposite order: each must get their original seat back, and the
	// pending answer must stay with its owner.
	rm2, err := newRoomManager(store, session.WouldYouRather, 0)
	require.NoError(t, err)
	reborn := rm2.getRoom(cfg, "abc123")

	bobAgain := newTestClient("bob")
	reborn.handleRegister(cfg, bobAgain)

	var info SessionInfoMessage
	var state SessionStateMessage
	for _, msg := range drain(bobAgain) {
		switch m := msg.(type) {
		case SessionInfoMessage:
			info = m
		case SessionStateMessage:
			state = m
		}
	}

	assert.Equal(t, "b", info.Role)
	assert.False(t, state.Revealed)
	assert.Empty(t, state.YourChoice, "the partner's pending answer must not be attributed to the reconnecting client")
	assert.True(t, state.PartnerAnswered)
	assert.Empty(t, state.PartnerChoice)
}

func TestSlowClientEvictedDuringRegister(t *testing.T) {
	cfg, room := newTestRoom(t)

	stuck := &Client{
		send:      make(chan any),
		partnerID: "alice",
	}
	room.handleRegister(cfg, stuck)

	room.mu.RLock()
	_, registered := room.clients[stuck]
	room.mu.RUnlock()
	assert.False(t, registered, "a client that cannot take a message is evicted, not blocked on")

	_, open := <-stuck.send
	assert.False(t, open)
}

func TestRoomRunReturnsWhenClosed(t *testing.T) {
	store := session.NewStore(session.NewMemory(), session.NewRegistry())

	room, err := newRoom(store, session.WouldYouRather, deckFor(session.WouldYouRather), "abc123")
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		room.run(&Config{})
		close(finished)
	}()

	room.closeAll()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("run did not return after the room was closed")
	}
}

func TestNewCoupleIDFormat(t *testing.T) {
	store := session.NewStore(session.NewMemory(), session.NewRegistry())

	rm, err := newRoomManager(store, session.LoveQuiz, 0)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id := rm.newCoupleID()
		assert.Len(t, id, 8)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
