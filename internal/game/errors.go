package game

import (
	"errors"
	"fmt"

	"github.com/VelascoAMath/phase.ten/internal/game/rules"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrIllegalAction matches every *IllegalActionError.
	ErrIllegalAction = errors.New("illegal action")
	// ErrGameOver is returned for any action on a game that already has a winner.
	ErrGameOver = errors.New("game is over")
	// ErrIntegrity means the cards of a game no longer add up to one full deck.
	ErrIntegrity = errors.New("card multiset does not reconcile")
)

// NotFoundError reports an unknown game, player, user or table pile.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind string, id fmt.Stringer) error {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

// IllegalActionError is a rejected action. The game state is left untouched.
type IllegalActionError struct {
	Action ActionType
	Reason string
}

func (e *IllegalActionError) Error() string {
	if e.Action == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *IllegalActionError) Is(target error) bool {
	return target == ErrIllegalAction
}

func illegal(action ActionType, format string, args ...any) error {
	return &IllegalActionError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a rejection the caller can correct,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	var syntax *rules.PatternSyntaxError
	switch {
	case errors.Is(err, ErrIllegalAction), errors.Is(err, ErrNotFound), errors.Is(err, ErrGameOver):
		return true
	case errors.As(err, &syntax), errors.Is(err, rules.ErrEmptyPhaseList):
		return true
	}
	return false
}
