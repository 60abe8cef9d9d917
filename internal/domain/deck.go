package domain

import (
	"math/rand"

	"github.com/google/uuid"
)

// FruitTypes is the fixed set of fruit kinds cards are drawn from.
var FruitTypes = []string{
	"apple",
	"banana",
	"mango",
	"strawberry",
	"orange",
	"grape",
	"watermelon",
	"peach",
}

// BuildDeck produces the ordered deck for a game: handSize cards of each of
// the first numPlayers fruit types (cycling through the list by index), plus
// one extra card of the final fruit type. The total is always
// numPlayers*handSize + 1 cards, each with a freshly generated unique id.
func BuildDeck(types []string, numPlayers, handSize int) []Card {
	deck := make([]Card, 0, numPlayers*handSize+1)
	for i := 0; i < numPlayers; i++ {
		t := types[i%len(types)]
		for j := 0; j < handSize; j++ {
			deck = append(deck, Card{Type: t, ID: uuid.NewString()})
		}
	}
	deck = append(deck, Card{Type: types[len(types)-1], ID: uuid.NewString()})
	return deck
}

// ShuffleDeck returns a shuffled copy of the given deck. The input is left
// untouched so callers never alias the generator's output.
func ShuffleDeck(rng *rand.Rand, deck []Card) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
