package rules

import (
	"fmt"

	"github.com/google/uuid"
)

// TurnState is where a player stands in the current turn.
type TurnState int

const (
	TurnWaiting TurnState = iota
	TurnMustDraw
	TurnMustAct
	TurnSkipped
)

var turnStateNames = map[TurnState]string{
	TurnWaiting:  "WAITING",
	TurnMustDraw: "MUST_DRAW",
	TurnMustAct:  "MUST_ACT",
	TurnSkipped:  "SKIPPED",
}

func (s TurnState) String() string {
	if name, ok := turnStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TURN_STATE_%d", int(s))
}

// DeriveTurnState computes a player's turn state. Pending skip cards
// override everything else.
func DeriveTurnState(isCurrent bool, pendingSkips int, drewCard bool) TurnState {
	switch {
	case pendingSkips > 0:
		return TurnSkipped
	case !isCurrent:
		return TurnWaiting
	case !drewCard:
		return TurnMustDraw
	default:
		return TurnMustAct
	}
}

// TurnOrder is the seating of a game, first seat first.
type TurnOrder struct {
	seats []uuid.UUID
}

// NewTurnOrder creates a seating from ids already sorted by turn index.
func NewTurnOrder(seats []uuid.UUID) *TurnOrder {
	out := make([]uuid.UUID, len(seats))
	copy(out, seats)
	return &TurnOrder{seats: out}
}

// Len returns the number of seats.
func (o *TurnOrder) Len() int { return len(o.seats) }

// Seats returns a copy of the seating.
func (o *TurnOrder) Seats() []uuid.UUID {
	out := make([]uuid.UUID, len(o.seats))
	copy(out, o.seats)
	return out
}

// First returns the player in the first seat.
func (o *TurnOrder) First() uuid.UUID {
	if len(o.seats) == 0 {
		return uuid.Nil
	}
	return o.seats[0]
}

// Successor returns the player seated after id, wrapping around.
func (o *TurnOrder) Successor(id uuid.UUID) (uuid.UUID, bool) {
	for i, seat := range o.seats {
		if seat == id {
			return o.seats[(i+1)%len(o.seats)], true
		}
	}
	return uuid.Nil, false
}

// Rotate moves the first seat to the end, so the next round opens with the
// player who sat second.
func (o *TurnOrder) Rotate() {
	if len(o.seats) < 2 {
		return
	}
	first := o.seats[0]
	copy(o.seats, o.seats[1:])
	o.seats[len(o.seats)-1] = first
}
