package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
)

// Unbounded is the size of a component written without a length (bare R, S or C).
const Unbounded = -1

// maxGroupSize caps sets and color groups; no hand can hold more cards than the deck.
const maxGroupSize = cards.DeckSize

var (
	multiPattern = regexp.MustCompile(`^([RCS]\d+\+)*[RCS]\d+$`)
	barePattern  = regexp.MustCompile(`^[RCS]$`)
)

// ErrNoTransition marks a card with no outgoing edge from the current state.
var ErrNoTransition = errors.New("no transition")

// PatternSyntaxError reports a malformed phase specification.
type PatternSyntaxError struct {
	Spec   string
	Reason string
}

func (e *PatternSyntaxError) Error() string {
	return fmt.Sprintf("invalid phase %q: %s", e.Spec, e.Reason)
}

// Kind is the type of a phase component.
type Kind byte

const (
	KindRun   Kind = 'R'
	KindSet   Kind = 'S'
	KindColor Kind = 'C'
)

func (k Kind) String() string {
	switch k {
	case KindRun:
		return "RUN"
	case KindSet:
		return "SET"
	case KindColor:
		return "COLOR"
	}
	return fmt.Sprintf("KIND_%c", byte(k))
}

// Component is one group of a phase, e.g. the "R4" in "S3+R4".
type Component struct {
	Kind Kind
	Size int
}

func (c Component) String() string {
	if c.Size == Unbounded {
		return string(c.Kind)
	}
	return string(c.Kind) + strconv.Itoa(c.Size)
}

// Generalized drops the size, giving the spec used for a table pile that may
// keep growing past the phase requirement.
func (c Component) Generalized() string {
	return string(c.Kind)
}

type stateID int

const noState stateID = -1

type state struct {
	final   bool
	exact   map[cards.Face]stateID
	rank    map[cards.Rank]stateID
	color   map[cards.Color]stateID
	epsilon stateID
}

// PhaseRule is a compiled phase specification. It is immutable after
// construction and safe for concurrent use.
type PhaseRule struct {
	spec       string
	components []Component
	states     []state
	start      stateID
	required   int
}

// New compiles spec. Malformed specifications return a *PatternSyntaxError.
func New(spec string) (*PhaseRule, error) {
	components, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}

	r := &PhaseRule{spec: spec, components: components}
	var prevFinals []stateID
	for i, comp := range components {
		start, finals := r.build(comp)
		if i == 0 {
			r.start = start
		} else {
			eps := r.newState()
			r.states[eps].epsilon = start
			for _, f := range prevFinals {
				r.states[f].epsilon = eps
			}
		}
		prevFinals = finals
	}
	for _, f := range prevFinals {
		r.states[f].final = true
	}

	if len(components) == 1 && components[0].Size == Unbounded {
		r.required = Unbounded
	} else {
		for _, c := range components {
			r.required += c.Size
		}
	}
	return r, nil
}

// MustNew is New for specs known to be valid.
func MustNew(spec string) *PhaseRule {
	r, err := New(spec)
	if err != nil {
		panic(err)
	}
	return r
}

func parseSpec(spec string) ([]Component, error) {
	if barePattern.MatchString(spec) {
		return []Component{{Kind: Kind(spec[0]), Size: Unbounded}}, nil
	}
	if !multiPattern.MatchString(spec) {
		return nil, &PatternSyntaxError{Spec: spec, Reason: "expected components like R4, S3 or C7 joined by +"}
	}

	parts := strings.Split(spec, "+")
	components := make([]Component, 0, len(parts))
	for _, part := range parts {
		size, err := strconv.Atoi(part[1:])
		if err != nil {
			return nil, &PatternSyntaxError{Spec: spec, Reason: err.Error()}
		}
		comp := Component{Kind: Kind(part[0]), Size: size}
		if size < 1 {
			return nil, &PatternSyntaxError{Spec: spec, Reason: fmt.Sprintf("%s must have at least one card", comp)}
		}
		if comp.Kind == KindRun && size > int(cards.MaxRank) {
			return nil, &PatternSyntaxError{Spec: spec, Reason: fmt.Sprintf("%s is longer than the %d available ranks", comp, cards.MaxRank)}
		}
		if size > maxGroupSize {
			return nil, &PatternSyntaxError{Spec: spec, Reason: fmt.Sprintf("%s is larger than the deck", comp)}
		}
		components = append(components, comp)
	}
	return components, nil
}

// Spec returns the text the rule was compiled from.
func (r *PhaseRule) Spec() string { return r.spec }

// RequiredLength is the number of cards a complete phase uses, or Unbounded.
func (r *PhaseRule) RequiredLength() int { return r.required }

// Components returns a copy of the parsed components in spec order.
func (r *PhaseRule) Components() []Component {
	out := make([]Component, len(r.components))
	copy(out, r.components)
	return out
}

// walk consumes seq from the start state and returns the state reached.
func (r *PhaseRule) walk(seq cards.Collection) (stateID, error) {
	cur := r.start
	for i, card := range seq {
		cur = r.skipEpsilon(cur)
		next, ok := r.step(cur, card)
		if !ok {
			return cur, fmt.Errorf("card %d (%s): %w", i, card, ErrNoTransition)
		}
		cur = next
	}
	return cur, nil
}

func (r *PhaseRule) skipEpsilon(id stateID) stateID {
	for r.states[id].epsilon != noState {
		id = r.states[id].epsilon
	}
	return id
}

func (r *PhaseRule) step(id stateID, card cards.Card) (stateID, bool) {
	s := &r.states[id]
	if next, ok := s.exact[card.Face()]; ok {
		return next, true
	}
	if next, ok := s.color[card.Color]; ok {
		return next, true
	}
	if next, ok := s.rank[card.Rank]; ok {
		return next, true
	}
	return noState, false
}

// IsFullyAccepted reports whether seq, in this exact order, completes the phase.
func (r *PhaseRule) IsFullyAccepted(seq cards.Collection) bool {
	end, err := r.walk(seq)
	if err != nil {
		return false
	}
	return r.states[end].final
}

func (r *PhaseRule) newState() stateID {
	r.states = append(r.states, state{epsilon: noState})
	return stateID(len(r.states) - 1)
}

func (r *PhaseRule) onRank(from stateID, rank cards.Rank, to stateID) {
	s := &r.states[from]
	if s.rank == nil {
		s.rank = make(map[cards.Rank]stateID)
	}
	s.rank[rank] = to
}

func (r *PhaseRule) onColor(from stateID, color cards.Color, to stateID) {
	s := &r.states[from]
	if s.color == nil {
		s.color = make(map[cards.Color]stateID)
	}
	s.color[color] = to
}

func (r *PhaseRule) newColumn(n int) []stateID {
	col := make([]stateID, n)
	for i := range col {
		col[i] = r.newState()
	}
	return col
}
