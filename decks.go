/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "github.com/Seednode/couplebox/session"

// Card is one round of content. The prompt is shown to both partners;
// the options are the answers a partner may submit. The session layer
// only ever sees a deck's length and an index into it.
type Card struct {
	Prompt  string   `json:"prompt,omitempty"`
	Options []string `json:"options"`
}

type Deck []Card

func deckFor(game session.GameKind) Deck {
	switch game {
	case session.WouldYouRather:
		return wouldYouRatherDeck
	case session.TruthOrDare:
		return truthOrDareDeck
	case session.LoveQuiz:
		return loveQuizDeck
	}
	return nil
}

var wouldYouRatherDeck = Deck{
	{Prompt: "Would you rather...", Options: []string{"Live by the ocean", "Live in the mountains"}},
	{Prompt: "Would you rather...", Options: []string{"Travel the world for a year", "Buy our dream home now"}},
	{Prompt: "Would you rather...", Options: []string{"Cook dinner together every night", "Eat out somewhere new every week"}},
	{Prompt: "Would you rather...", Options: []string{"Relive our first date", "Fast-forward to our tenth anniversary"}},
	{Prompt: "Would you rather...", Options: []string{"Have a lazy Sunday in bed", "Go on a spontaneous road trip"}},
	{Prompt: "Would you rather...", Options: []string{"Know everything about my past", "Know everything about my future"}},
	{Prompt: "Would you rather...", Options: []string{"Slow dance in the kitchen", "Sing karaoke duets in public"}},
	{Prompt: "Would you rather...", Options: []string{"Adopt a dog", "Adopt a cat"}},
	{Prompt: "Would you rather...", Options: []string{"Have breakfast in bed every day", "Have a candlelit dinner every week"}},
	{Prompt: "Would you rather...", Options: []string{"Watch the sunrise together", "Stay up for the sunset"}},
	{Prompt: "Would you rather...", Options: []string{"Take a cooking class together", "Take a dance class together"}},
	{Prompt: "Would you rather...", Options: []string{"Camp under the stars", "Stay in a fancy hotel"}},
	{Prompt: "Would you rather...", Options: []string{"Text all day", "One long call at night"}},
	{Prompt: "Would you rather...", Options: []string{"Matching tattoos", "Matching pajamas"}},
	{Prompt: "Would you rather...", Options: []string{"Win the lottery together", "Never argue again"}},
	{Prompt: "Would you rather...", Options: []string{"A surprise party from me", "A quiet evening planned together"}},
}

var truthOrDareDeck = Deck{
	{Options: []string{"Truth: What did you really think on our first date?", "Dare: Send me your most embarrassing photo"}},
	{Options: []string{"Truth: What's one thing you've never told me?", "Dare: Write me a poem right now, four lines minimum"}},
	{Options: []string{"Truth: When did you know you were in love?", "Dare: Do your best impression of me"}},
	{Options: []string{"Truth: What habit of mine secretly amuses you?", "Dare: Serenade me with any song"}},
	{Options: []string{"Truth: What's your favorite memory of us?", "Dare: Recreate our first photo together"}},
	{Options: []string{"Truth: What were you most nervous about early on?", "Dare: Speak in an accent until the next round"}},
	{Options: []string{"Truth: What's something I do that makes you feel loved?", "Dare: Plan our next date in under a minute"}},
	{Options: []string{"Truth: What's the silliest reason you've ever been jealous?", "Dare: Show me the oldest photo of us on your phone"}},
	{Options: []string{"Truth: If we switched lives for a day, what would you do first?", "Dare: Compliment me for thirty seconds straight"}},
	{Options: []string{"Truth: What song always makes you think of me?", "Dare: Dance with no music for fifteen seconds"}},
	{Options: []string{"Truth: What's one adventure you want us to take?", "Dare: Draw my portrait in one minute"}},
	{Options: []string{"Truth: What did you tell your friends after we met?", "Dare: Let me pick your profile picture"}},
}

var loveQuizDeck = Deck{
	{Prompt: "What would I pick for a perfect evening?", Options: []string{"Movie night in", "Dinner out", "Board games", "A long walk"}},
	{Prompt: "Which do I value most?", Options: []string{"Honesty", "Humor", "Ambition", "Kindness"}},
	{Prompt: "What's my comfort food?", Options: []string{"Pizza", "Ice cream", "Ramen", "Chocolate"}},
	{Prompt: "Where would I most want to travel next?", Options: []string{"Japan", "Italy", "Iceland", "New Zealand"}},
	{Prompt: "What's my love language?", Options: []string{"Words of affirmation", "Quality time", "Acts of service", "Physical touch"}},
	{Prompt: "How do I handle a bad day?", Options: []string{"Talk it out", "Quiet time alone", "Comfort food", "A workout"}},
	{Prompt: "What's my dream weekend?", Options: []string{"Sleeping in", "Hiking", "A city trip", "Hosting friends"}},
	{Prompt: "Which season am I happiest in?", Options: []string{"Spring", "Summer", "Autumn", "Winter"}},
	{Prompt: "What would I grab first in a fire?", Options: []string{"Photos", "My laptop", "You", "The pet"}},
	{Prompt: "What's my hidden talent?", Options: []string{"Cooking", "Singing", "Trivia", "Finding deals"}},
	{Prompt: "What do I want more of from you?", Options: []string{"Surprises", "Compliments", "Help around the house", "Undivided attention"}},
	{Prompt: "Which movie genre do I secretly love?", Options: []string{"Romcoms", "Horror", "Documentaries", "Action"}},
}
