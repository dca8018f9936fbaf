package cards

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Deck composition.
const (
	CopiesPerFace = 2
	SkipCount     = 4
	WildCount     = 8
	DeckSize      = 4*12*CopiesPerFace + SkipCount + WildCount
)

// Collection is an ordered list of cards. For piles used as stacks the top
// is the last element.
type Collection []Card

// NewDeck builds the full 108-card deck in a fixed order.
func NewDeck() Collection {
	deck := make(Collection, 0, DeckSize)
	for _, color := range NaturalColors {
		for rank := MinRank; rank <= MaxRank; rank++ {
			for i := 0; i < CopiesPerFace; i++ {
				deck = append(deck, MustCard(color, rank))
			}
		}
	}
	for i := 0; i < SkipCount; i++ {
		deck = append(deck, Skip())
	}
	for i := 0; i < WildCount; i++ {
		deck = append(deck, Wild())
	}
	return deck
}

// ParseList parses a whitespace or comma separated list of short card texts.
func ParseList(s string) (Collection, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	out := make(Collection, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParseList is ParseList for literals.
func MustParseList(s string) Collection {
	out, err := ParseList(s)
	if err != nil {
		panic(err)
	}
	return out
}

// Clone returns a copy with its own backing array.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Shuffle permutes the collection in place.
func (c Collection) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
}

// SortByColor orders by color, then rank. Wilds and skips go last.
func (c Collection) SortByColor() {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Color != c[j].Color {
			return c[i].Color < c[j].Color
		}
		return c[i].Rank < c[j].Rank
	})
}

// SortByRank orders by rank, then color. Skips and wilds go last.
func (c Collection) SortByRank() {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Rank != c[j].Rank {
			return c[i].Rank < c[j].Rank
		}
		return c[i].Color < c[j].Color
	})
}

// IndexOf returns the position of the card with the given id, or -1.
func (c Collection) IndexOf(id uuid.UUID) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexOfFace returns the first position holding an equal card, or -1.
func (c Collection) IndexOfFace(card Card) int {
	for i := range c {
		if c[i].Equal(card) {
			return i
		}
	}
	return -1
}

// Remove deletes the card at index i and returns the shortened collection.
func (c Collection) Remove(i int) (Collection, Card) {
	card := c[i]
	out := append(c[:i:i], c[i+1:]...)
	return out, card
}

// Top returns the last card.
func (c Collection) Top() (Card, bool) {
	if len(c) == 0 {
		return Card{}, false
	}
	return c[len(c)-1], true
}

// Pop removes and returns the last card.
func (c Collection) Pop() (Collection, Card, bool) {
	if len(c) == 0 {
		return c, Card{}, false
	}
	return c[:len(c)-1], c[len(c)-1], true
}

// Count returns how many cards satisfy pred.
func (c Collection) Count(pred func(Card) bool) int {
	n := 0
	for _, card := range c {
		if pred(card) {
			n++
		}
	}
	return n
}

// Faces counts cards per face, the order-independent multiset view.
func (c Collection) Faces() map[Face]int {
	out := make(map[Face]int, len(c))
	for _, card := range c {
		out[card.Face()]++
	}
	return out
}

func (c Collection) String() string {
	parts := make([]string, len(c))
	for i, card := range c {
		parts[i] = card.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// VerifyFullDeck reports an error unless the collection is exactly the
// 108-card deck multiset.
func VerifyFullDeck(c Collection) error {
	if len(c) != DeckSize {
		return fmt.Errorf("deck has %d cards, want %d", len(c), DeckSize)
	}
	want := NewDeck().Faces()
	got := c.Faces()
	for face, n := range want {
		if got[face] != n {
			return fmt.Errorf("deck has %d of %s/%s, want %d", got[face], face.Color, face.Rank, n)
		}
	}
	return nil
}
