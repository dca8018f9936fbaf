package game

import (
	"context"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
)

// PlayerView is what a player sees of their own seat.
type PlayerView struct {
	ID             uuid.UUID        `json:"id"`
	GameID         uuid.UUID        `json:"game_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Name           string           `json:"name"`
	Hand           cards.Collection `json:"hand"`
	TurnIndex      int              `json:"turn_index"`
	PhaseIndex     int              `json:"phase_index"`
	Phase          string           `json:"phase"`
	DrewCard       bool             `json:"drew_card"`
	CompletedPhase bool             `json:"completed_phase"`
	SkipCards      int              `json:"skip_cards"`
	State          string           `json:"state"`
	// Score is how many cards the hand is missing for the phase. It is
	// recomputed for every view and never stored.
	Score *int `json:"score,omitempty"`
}

// PlayerSummary is the public part of a seat.
type PlayerSummary struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	IsBot          bool      `json:"is_bot"`
	TurnIndex      int       `json:"turn_index"`
	PhaseIndex     int       `json:"phase_index"`
	HandSize       int       `json:"hand_size"`
	DrewCard       bool      `json:"drew_card"`
	CompletedPhase bool      `json:"completed_phase"`
	SkipCards      int       `json:"skip_cards"`
}

// PhaseDeckView is a pile on the table.
type PhaseDeckView struct {
	ID       uuid.UUID        `json:"id"`
	Phase    string           `json:"phase"`
	Deck     cards.Collection `json:"deck"`
	Position int              `json:"position"`
}

// GameView is the state every seat at the table may see.
type GameView struct {
	ID            uuid.UUID       `json:"id"`
	PhaseList     []string        `json:"phase_list"`
	DeckSize      int             `json:"deck_size"`
	DiscardSize   int             `json:"discard_size"`
	DiscardTop    *cards.Card     `json:"discard_top,omitempty"`
	Piles         []PhaseDeckView `json:"piles"`
	Players       []PlayerSummary `json:"players"`
	CurrentPlayer uuid.UUID       `json:"current_player"`
	Host          uuid.UUID       `json:"host"`
	InProgress    bool            `json:"in_progress"`
	Winner        uuid.NullUUID   `json:"winner"`
	Round         int             `json:"round"`
	LastMove      time.Time       `json:"last_move"`
	TimeLimit     time.Duration   `json:"time_limit"`
	Checksum      Checksum        `json:"checksum"`
}

// GameSummary is one lobby entry.
type GameSummary struct {
	ID         uuid.UUID     `json:"id"`
	Host       uuid.UUID     `json:"host"`
	PhaseList  []string      `json:"phase_list"`
	InProgress bool          `json:"in_progress"`
	Winner     uuid.NullUUID `json:"winner"`
	Round      int           `json:"round"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (e *Engine) gameView(t *table) *GameView {
	g := t.game
	v := &GameView{
		ID:            g.ID,
		PhaseList:     append([]string(nil), g.PhaseList...),
		DeckSize:      len(g.Deck),
		DiscardSize:   len(g.Discard),
		Piles:         make([]PhaseDeckView, 0, len(t.piles)),
		Players:       make([]PlayerSummary, 0, len(t.players)),
		CurrentPlayer: g.CurrentPlayer,
		Host:          g.Host,
		InProgress:    g.InProgress,
		Winner:        g.Winner,
		Round:         g.Round,
		LastMove:      g.LastMove,
		TimeLimit:     g.TimeLimit,
		Checksum:      computeChecksum(t),
	}
	if top, ok := g.Discard.Top(); ok {
		v.DiscardTop = &top
	}
	for _, d := range t.piles {
		v.Piles = append(v.Piles, PhaseDeckView{
			ID:       d.ID,
			Phase:    d.Phase,
			Deck:     d.Deck.Clone(),
			Position: d.Position,
		})
	}
	for _, p := range t.players {
		v.Players = append(v.Players, PlayerSummary{
			ID:             p.ID,
			UserID:         p.UserID,
			Name:           t.name(p),
			IsBot:          t.isBot(p),
			TurnIndex:      p.TurnIndex,
			PhaseIndex:     p.PhaseIndex,
			HandSize:       len(p.Hand),
			DrewCard:       p.DrewCard,
			CompletedPhase: p.CompletedPhase,
			SkipCards:      len(p.SkipCards),
		})
	}
	return v
}

func (e *Engine) playerView(t *table, p *Player) *PlayerView {
	v := &PlayerView{
		ID:             p.ID,
		GameID:         p.GameID,
		UserID:         p.UserID,
		Name:           t.name(p),
		Hand:           p.Hand.Clone(),
		TurnIndex:      p.TurnIndex,
		PhaseIndex:     p.PhaseIndex,
		DrewCard:       p.DrewCard,
		CompletedPhase: p.CompletedPhase,
		SkipCards:      len(p.SkipCards),
	}
	isCurrent := t.game.InProgress && t.game.CurrentPlayer == p.ID
	v.State = rules.DeriveTurnState(isCurrent, len(p.SkipCards), p.DrewCard).String()
	if p.PhaseIndex < len(t.game.PhaseList) {
		v.Phase = t.game.PhaseList[p.PhaseIndex]
		if rule, err := e.registry.Get(v.Phase); err == nil && !p.CompletedPhase {
			score := rule.Score(p.Hand)
			v.Score = &score
		}
	}
	return v
}

func summarize(g *Game) GameSummary {
	return GameSummary{
		ID:         g.ID,
		Host:       g.Host,
		PhaseList:  append([]string(nil), g.PhaseList...),
		InProgress: g.InProgress,
		Winner:     g.Winner,
		Round:      g.Round,
		CreatedAt:  g.CreatedAt,
	}
}

// GetPlayerView returns a player's own view together with the game view.
func (e *Engine) GetPlayerView(ctx context.Context, playerID uuid.UUID) (*Result, error) {
	p, err := e.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	t, err := loadTable(ctx, e.store, p.GameID)
	if err != nil {
		return nil, err
	}
	return e.result(t, playerID), nil
}

// GetGameView returns the shared view of a game.
func (e *Engine) GetGameView(ctx context.Context, gameID uuid.UUID) (*GameView, error) {
	t, err := loadTable(ctx, e.store, gameID)
	if err != nil {
		return nil, err
	}
	return e.gameView(t), nil
}

// ListGames returns a lobby summary of every game.
func (e *Engine) ListGames(ctx context.Context) ([]GameSummary, error) {
	games, err := e.store.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, summarize(g))
	}
	return out, nil
}
