package game

import (
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/google/uuid"
)

// User is an account that can host or join games. Bots are users too.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Display   string    `json:"display"`
	Token     string    `json:"token"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// Game is the shared state of one table. CurrentPlayer and Winner hold
// player ids; Host holds the user id of the creator.
type Game struct {
	ID            uuid.UUID        `json:"id"`
	PhaseList     []string         `json:"phase_list"`
	Deck          cards.Collection `json:"deck"`
	Discard       cards.Collection `json:"discard"`
	CurrentPlayer uuid.UUID        `json:"current_player"`
	Host          uuid.UUID        `json:"host"`
	InProgress    bool             `json:"in_progress"`
	Winner        uuid.NullUUID    `json:"winner"`
	Round         int              `json:"round"`
	LastMove      time.Time        `json:"last_move"`
	TimeLimit     time.Duration    `json:"time_limit"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Over reports whether the game has a winner.
func (g *Game) Over() bool { return g.Winner.Valid }

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
	out := *g
	out.PhaseList = append([]string(nil), g.PhaseList...)
	out.Deck = g.Deck.Clone()
	out.Discard = g.Discard.Clone()
	return &out
}

// Player is one seat in a game.
type Player struct {
	ID             uuid.UUID        `json:"id"`
	GameID         uuid.UUID        `json:"game_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Hand           cards.Collection `json:"hand"`
	TurnIndex      int              `json:"turn_index"`
	PhaseIndex     int              `json:"phase_index"`
	DrewCard       bool             `json:"drew_card"`
	CompletedPhase bool             `json:"completed_phase"`
	SkipCards      cards.Collection `json:"skip_cards"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	out := *p
	out.Hand = p.Hand.Clone()
	out.SkipCards = p.SkipCards.Clone()
	return &out
}

// PhaseDeck is a completed phase component laid on the table. Phase holds the
// component kind without a size so the pile can keep growing.
type PhaseDeck struct {
	ID        uuid.UUID        `json:"id"`
	GameID    uuid.UUID        `json:"game_id"`
	Phase     string           `json:"phase"`
	Deck      cards.Collection `json:"deck"`
	Position  int              `json:"position"`
	CreatedAt time.Time        `json:"created_at"`
}

// Clone returns a deep copy.
func (d *PhaseDeck) Clone() *PhaseDeck {
	out := *d
	out.Deck = d.Deck.Clone()
	return &out
}
