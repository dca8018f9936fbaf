package cards

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Color is the suit of a card. Skip and Wild are pseudo-colors that only pair
// with the matching pseudo-rank.
type Color int

const (
	Red Color = iota
	Blue
	Green
	Yellow
	SkipColor
	WildColor
)

// Rank is the face value of a card.
type Rank int

const (
	One Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Eleven
	Twelve
	SkipRank
	WildRank
)

// MinRank and MaxRank bound the natural (non-pseudo) ranks.
const (
	MinRank = One
	MaxRank = Twelve
)

// NaturalColors lists the four colors that carry ranked cards, in deck order.
var NaturalColors = []Color{Red, Blue, Green, Yellow}

var colorNames = map[Color]string{
	Red:       "RED",
	Blue:      "BLUE",
	Green:     "GREEN",
	Yellow:    "YELLOW",
	SkipColor: "SKIP",
	WildColor: "WILD",
}

var colorLetters = map[Color]string{
	Red:    "R",
	Blue:   "B",
	Green:  "G",
	Yellow: "Y",
}

var rankNames = map[Rank]string{
	One:      "ONE",
	Two:      "TWO",
	Three:    "THREE",
	Four:     "FOUR",
	Five:     "FIVE",
	Six:      "SIX",
	Seven:    "SEVEN",
	Eight:    "EIGHT",
	Nine:     "NINE",
	Ten:      "TEN",
	Eleven:   "ELEVEN",
	Twelve:   "TWELVE",
	SkipRank: "SKIP",
	WildRank: "WILD",
}

var (
	colorByName   = map[string]Color{}
	colorByLetter = map[string]Color{}
	rankByName    = map[string]Rank{}
)

func init() {
	for c, name := range colorNames {
		if _, dup := colorByName[name]; dup {
			panic("cards: duplicate color name " + name)
		}
		colorByName[name] = c
	}
	for c, letter := range colorLetters {
		if _, dup := colorByLetter[letter]; dup {
			panic("cards: duplicate color letter " + letter)
		}
		colorByLetter[letter] = c
	}
	for r, name := range rankNames {
		if _, dup := rankByName[name]; dup {
			panic("cards: duplicate rank name " + name)
		}
		rankByName[name] = r
	}
	if len(colorByName) != int(WildColor)+1 || len(rankByName) != int(WildRank) {
		panic("cards: enum name tables are incomplete")
	}
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COLOR_%d", int(c))
}

// Valid reports whether c is a known color.
func (c Color) Valid() bool {
	_, ok := colorNames[c]
	return ok
}

// Natural reports whether c is one of the four ranked colors.
func (c Color) Natural() bool {
	return c >= Red && c <= Yellow
}

// ParseColor converts a color name ("RED") into a Color.
func ParseColor(s string) (Color, error) {
	if c, ok := colorByName[strings.ToUpper(s)]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

func (c Color) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown color %d", int(c))
	}
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RANK_%d", int(r))
}

// Valid reports whether r is a known rank.
func (r Rank) Valid() bool {
	_, ok := rankNames[r]
	return ok
}

// Natural reports whether r is one of the twelve numbered ranks.
func (r Rank) Natural() bool {
	return r >= MinRank && r <= MaxRank
}

// ParseRank converts a rank name ("SEVEN") into a Rank.
func ParseRank(s string) (Rank, error) {
	if r, ok := rankByName[strings.ToUpper(s)]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown rank %d", int(r))
	}
	return json.Marshal(r.String())
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Card is a single playing card. Two cards are equal for game logic when
// their color and rank match; ID only distinguishes physical copies.
type Card struct {
	ID    uuid.UUID `json:"id"`
	Color Color     `json:"color"`
	Rank  Rank      `json:"rank"`
}

// Face identifies a card by color and rank, ignoring identity.
type Face struct {
	Color Color
	Rank  Rank
}

// NewCard creates a card with a fresh identity.
func NewCard(color Color, rank Rank) (Card, error) {
	if err := validate(color, rank); err != nil {
		return Card{}, err
	}
	return Card{ID: uuid.New(), Color: color, Rank: rank}, nil
}

// MustCard is NewCard for compile-time constant faces.
func MustCard(color Color, rank Rank) Card {
	c, err := NewCard(color, rank)
	if err != nil {
		panic(err)
	}
	return c
}

// Wild returns a new wild card.
func Wild() Card { return MustCard(WildColor, WildRank) }

// Skip returns a new skip card.
func Skip() Card { return MustCard(SkipColor, SkipRank) }

func validate(color Color, rank Rank) error {
	if !color.Valid() {
		return fmt.Errorf("unknown color %d", int(color))
	}
	if !rank.Valid() {
		return fmt.Errorf("unknown rank %d", int(rank))
	}
	if (color == WildColor) != (rank == WildRank) {
		return fmt.Errorf("invalid card %s/%s: wild color and wild rank must pair", color, rank)
	}
	if (color == SkipColor) != (rank == SkipRank) {
		return fmt.Errorf("invalid card %s/%s: skip color and skip rank must pair", color, rank)
	}
	return nil
}

// IsWild reports whether c is a wild card.
func (c Card) IsWild() bool { return c.Rank == WildRank }

// IsSkip reports whether c is a skip card.
func (c Card) IsSkip() bool { return c.Rank == SkipRank }

// IsNatural reports whether c is neither wild nor skip.
func (c Card) IsNatural() bool { return c.Rank.Natural() }

// Face returns the identity-free value of c.
func (c Card) Face() Face { return Face{Color: c.Color, Rank: c.Rank} }

// Equal compares color and rank only.
func (c Card) Equal(other Card) bool {
	return c.Color == other.Color && c.Rank == other.Rank
}

// String renders the short text form: "R7", "B12", "W" or "S".
func (c Card) String() string {
	switch {
	case c.IsWild():
		return "W"
	case c.IsSkip():
		return "S"
	}
	return colorLetters[c.Color] + strconv.Itoa(int(c.Rank))
}

// Parse reads the short text form produced by String.
func Parse(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "W":
		return Wild(), nil
	case "S":
		return Skip(), nil
	case "":
		return Card{}, fmt.Errorf("empty card text")
	}
	color, ok := colorByLetter[s[:1]]
	if !ok {
		return Card{}, fmt.Errorf("card %q: unknown color letter", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", s, err)
	}
	rank := Rank(n)
	if !rank.Natural() {
		return Card{}, fmt.Errorf("card %q: rank out of range", s)
	}
	return NewCard(color, rank)
}

// MustParse is Parse for literals.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// UnmarshalJSON accepts either the object form or the short text form, and
// rejects invalid color/rank pairings.
func (c *Card) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := Parse(text)
		if err != nil {
			return err
		}
		parsed.ID = uuid.Nil
		*c = parsed
		return nil
	}

	type rawCard Card
	var raw rawCard
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := validate(raw.Color, raw.Rank); err != nil {
		return err
	}
	*c = Card(raw)
	return nil
}
