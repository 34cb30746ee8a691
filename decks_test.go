/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/Seednode/couplebox/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryGameHasADeck(t *testing.T) {
	for _, game := range []session.GameKind{
		session.WouldYouRather,
		session.TruthOrDare,
		session.LoveQuiz,
	} {
		deck := deckFor(game)
		require.NotEmpty(t, deck, "game %s", game)

		for i, card := range deck {
			assert.NotEmpty(t, card.Options, "game %s card %d", game, i)
		}
	}
}

func TestUnknownGameHasNoDeck(t *testing.T) {
	assert.Nil(t, deckFor(session.GameKind("charades")))
}

func TestWouldYouRatherCardsAreBinary(t *testing.T) {
	for i, card := range wouldYouRatherDeck {
		assert.Len(t, card.Options, 2, "card %d", i)
		assert.NotEqual(t, card.Options[0], card.Options[1], "card %d", i)
	}
}

func TestLoveQuizCardsHavePrompts(t *testing.T) {
	for i, card := range loveQuizDeck {
		assert.NotEmpty(t, card.Prompt, "card %d", i)
		assert.Len(t, card.Options, 4, "card %d", i)
	}
}
