/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Couplebox shared game sessions
//
// Each couple shares exactly one mutable document per game kind. Both
// partners may read and write it; there is no single writer and no lock.
// Correctness rests on two rules:
//   - Submit re-reads the latest document immediately before merging its
//     own slot in, so a concurrent submission by the partner is never lost.
//   - Every other transition is a pure function of the previous document,
//     so last-writer-wins at the storage layer produces the same result
//     regardless of which write lands last.
//
// Reveal is recomputed from the choice slots on every merge, never trusted
// from a stale value.

package session

import (
	"context"
	"errors"
)

// GameKind identifies which game's rules and deck apply to a session.
type GameKind string

const (
	WouldYouRather GameKind = "would-you-rather"
	TruthOrDare    GameKind = "truth-or-dare"
	LoveQuiz       GameKind = "love-quiz"
)

// Key identifies one shared session: one couple playing one game.
type Key struct {
	CoupleID string
	Game     GameKind
}

// Role selects one of the two slots in a couple. The pair is ordered once,
// at session start; there is no third role and no spectator.
type Role int

const (
	RoleA Role = iota
	RoleB
)

func (r Role) String() string {
	if r == RoleA {
		return "a"
	}
	return "b"
}

// Couple is the ordered pair of participant identities for a session. It
// is stored inside the document, so the pairing survives restarts and is
// never re-dealt by reconnection order.
type Couple struct {
	A string `json:"a,omitempty"`
	B string `json:"b,omitempty"`
}

// RoleOf resolves a participant identity to its slot in the couple.
func (c Couple) RoleOf(participant string) (Role, bool) {
	switch participant {
	case "":
		return 0, false
	case c.A:
		return RoleA, true
	case c.B:
		return RoleB, true
	}
	return 0, false
}

// Choices holds at most one answer per couple role for the current round.
// A fixed pair of optional slots, not an open-ended map: the two possible
// keys are known at session start.
type Choices struct {
	A *string `json:"a,omitempty"`
	B *string `json:"b,omitempty"`
}

// Count reports how many slots are filled.
func (c Choices) Count() int {
	n := 0
	if c.A != nil {
		n++
	}
	if c.B != nil {
		n++
	}
	return n
}

// Get returns the answer in the given slot, if any.
func (c Choices) Get(r Role) (string, bool) {
	var p *string
	if r == RoleA {
		p = c.A
	} else {
		p = c.B
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Document is the shared state of one session. Whole documents are written,
// never patched, so a write either applies the full transition or nothing.
type Document struct {
	RoundIndex int     `json:"round_index"`
	Couple     Couple  `json:"couple"`
	Choices    Choices `json:"choices"`
	Revealed   bool    `json:"revealed"`
	Initiator  string  `json:"initiator,omitempty"`
}

// clone returns a copy sharing no pointers with the original.
func (d Document) clone() Document {
	out := d
	if d.Choices.A != nil {
		v := *d.Choices.A
		out.Choices.A = &v
	}
	if d.Choices.B != nil {
		v := *d.Choices.B
		out.Choices.B = &v
	}
	return out
}

// merged returns doc with the given role's slot replaced by choice and
// revealed recomputed. The other slot is never touched, so resubmitting
// before reveal replaces only the caller's own answer.
func merged(doc Document, role Role, choice string) Document {
	out := doc.clone()
	v := choice
	if role == RoleA {
		out.Choices.A = &v
	} else {
		out.Choices.B = &v
	}
	out.Revealed = out.Choices.Count() == 2
	return out
}

// advanced returns the successor round: next card, empty slots, hidden.
// Pure function of the prior document, which is what makes a concurrent
// double-advance by both partners safe under last-writer-wins.
func advanced(doc Document, deckLen int) Document {
	next := 0
	if deckLen > 0 {
		next = (doc.RoundIndex + 1) % deckLen
	}
	return Document{
		RoundIndex: next,
		Couple:     doc.Couple,
		Revealed:   false,
		Initiator:  doc.Initiator,
	}
}

// seated returns doc with the slot assigned to the participant. A freed
// seat's pending answer never carries over to a new occupant: a replacement
// partner starts the round unanswered. Revealed answers stay visible.
func seated(doc Document, role Role, participant string) Document {
	out := doc.clone()
	if role == RoleA {
		out.Couple.A = participant
		if !out.Revealed {
			out.Choices.A = nil
		}
	} else {
		out.Couple.B = participant
		if !out.Revealed {
			out.Choices.B = nil
		}
	}
	return out
}

// ErrNoDeck is returned when a session is created over an empty deck.
var ErrNoDeck = errors.New("deck has no cards")

// ErrCoupleFull is returned when both seats already belong to other
// participants.
var ErrCoupleFull = errors.New("couple already has two participants")

// Session drives one couple's game through the read-merge-write discipline
// against a Store. It holds no document state of its own: every transition
// starts from a fresh read, never from a cached copy.
type Session struct {
	store   *Store
	key     Key
	deckLen int
}

// New binds a session to its store key and deck length.
func New(store *Store, key Key, deckLen int) (*Session, error) {
	if deckLen <= 0 {
		return nil, ErrNoDeck
	}
	return &Session{
		store:   store,
		key:     key,
		deckLen: deckLen,
	}, nil
}

// Current returns the latest document, or found=false when no round has
// been initialized yet.
func (s *Session) Current(ctx context.Context) (Document, bool, error) {
	return s.store.Read(ctx, s.key)
}

// Seat resolves a participant to their slot in the couple, claiming the
// first free one when the identity is new. The pair is written into the
// document, so a participant reclaims the same slot after a reconnect or a
// server restart no matter which partner comes back first.
func (s *Session) Seat(ctx context.Context, participant string) (Role, error) {
	if participant == "" {
		return 0, errors.New("participant id is empty")
	}

	doc, _, err := s.store.Read(ctx, s.key)
	if err != nil {
		return 0, err
	}
	if role, ok := doc.Couple.RoleOf(participant); ok {
		return role, nil
	}

	var role Role
	switch {
	case doc.Couple.A == "":
		role = RoleA
	case doc.Couple.B == "":
		role = RoleB
	default:
		return 0, ErrCoupleFull
	}

	doc = seated(doc, role, participant)
	if err := s.store.Write(ctx, s.key, doc); err != nil {
		return 0, err
	}
	return role, nil
}

// Release frees the participant's seat, leaving the partner and any revealed
// answers in place. Releasing an unknown identity is a no-op.
func (s *Session) Release(ctx context.Context, participant string) error {
	doc, found, err := s.store.Read(ctx, s.key)
	if err != nil {
		return err
	}

	role, ok := doc.Couple.RoleOf(participant)
	if !found || !ok {
		return nil
	}

	if role == RoleA {
		doc.Couple.A = ""
	} else {
		doc.Couple.B = ""
	}
	return s.store.Write(ctx, s.key, doc)
}

// Initialize creates the round-zero document if none exists. Either partner
// may call it; when both tap "start" near-simultaneously the re-read makes
// the second call a no-op instead of clobbering an in-progress round.
func (s *Session) Initialize(ctx context.Context, initiator string) (Document, error) {
	doc, found, err := s.store.Read(ctx, s.key)
	if err != nil {
		return Document{}, err
	}
	if found {
		return doc, nil
	}

	doc = Document{Initiator: initiator}
	if err := s.store.Write(ctx, s.key, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Submit records one partner's answer for the current round. The document
// is re-read fresh from the store first, so a concurrent submission by the
// partner is folded in rather than overwritten. If the re-read fails the
// operation fails closed: nothing is written from stale or guessed state.
//
// When the partner's answer arrived first, the returned document is already
// revealed; callers should treat that as a normal transition, not an error.
func (s *Session) Submit(ctx context.Context, role Role, choice string) (Document, error) {
	doc, _, err := s.store.Read(ctx, s.key)
	if err != nil {
		return Document{}, err
	}

	doc = merged(doc, role, choice)
	if err := s.store.Write(ctx, s.key, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Advance moves a revealed round to the next card, wrapping at the end of
// the deck. Advancing a round that is not revealed returns the current
// document unchanged, which makes the second of two racing "next" taps a
// no-op whichever order the writes land in.
func (s *Session) Advance(ctx context.Context) (Document, error) {
	doc, found, err := s.store.Read(ctx, s.key)
	if err != nil {
		return Document{}, err
	}
	if !found || !doc.Revealed {
		return doc, nil
	}

	doc = advanced(doc, s.deckLen)
	if err := s.store.Write(ctx, s.key, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
