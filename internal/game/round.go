package game

import (
	"math/rand"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// passTurn ends the acting player's turn, or the round when their hand is
// empty.
func (e *Engine) passTurn(t *table, p *Player) error {
	done, err := e.finishIfEmpty(t, p)
	if err != nil || done {
		return err
	}
	e.advance(t, p)
	return nil
}

// advance hands the turn to the next seat after from. Every seat passed on
// the way that holds pending skip cards loses its turn: all of its skip cards
// go to the discard pile and the search moves on.
func (e *Engine) advance(t *table, from *Player) {
	order := t.order()
	from.DrewCard = false

	id, ok := order.Successor(from.ID)
	if !ok {
		return
	}
	for i := 0; i < order.Len(); i++ {
		next := t.player(id)
		if next == nil || next.ID == from.ID || len(next.SkipCards) == 0 {
			break
		}
		t.game.Discard = append(t.game.Discard, next.SkipCards...)
		t.record(EventSkipConsumed, next.ID, len(next.SkipCards))
		next.SkipCards = cards.Collection{}
		next.DrewCard = false
		id, _ = order.Successor(id)
	}

	next := t.player(id)
	next.DrewCard = false
	t.game.CurrentPlayer = next.ID
	t.game.LastMove = e.clock()
	t.record(EventTurnAdvanced, next.ID, 0)
}

// finishIfEmpty ends the game or the round once p has no cards left.
func (e *Engine) finishIfEmpty(t *table, p *Player) (bool, error) {
	if len(p.Hand) > 0 {
		return false, nil
	}
	g := t.game
	if p.CompletedPhase && p.PhaseIndex == len(g.PhaseList)-1 {
		g.Winner = uuid.NullUUID{UUID: p.ID, Valid: true}
		g.InProgress = false
		g.LastMove = e.clock()
		t.record(EventGameWon, p.ID, 0)
		e.logger.Info("game won",
			zap.String("game_id", g.ID.String()),
			zap.String("player_id", p.ID.String()),
			zap.Int("round", g.Round),
		)
		return true, nil
	}

	if err := verifyIntegrity(t); err != nil {
		return false, err
	}
	for _, pl := range t.players {
		if pl.CompletedPhase && pl.PhaseIndex < len(g.PhaseList)-1 {
			pl.PhaseIndex++
		}
	}
	order := t.order()
	order.Rotate()
	seated := make([]*Player, 0, len(t.players))
	for _, id := range order.Seats() {
		seated = append(seated, t.player(id))
	}
	t.players = seated
	t.reseat()

	if err := e.startRound(t); err != nil {
		return false, err
	}
	return true, nil
}

// startRound deals a fresh round to the current seating.
func (e *Engine) startRound(t *table) error {
	g := t.game
	if need := len(t.players)*e.handSize + 1; need > cards.DeckSize {
		return illegal("", "%d players need %d cards but the deck has %d", len(t.players), need, cards.DeckSize)
	}

	deck := cards.NewDeck()
	e.shuffle(func(rng *rand.Rand) { deck.Shuffle(rng) })

	for _, p := range t.players {
		p.Hand = deck[len(deck)-e.handSize:].Clone()
		deck = deck[:len(deck)-e.handSize]
		p.DrewCard = false
		p.CompletedPhase = false
		p.SkipCards = cards.Collection{}
	}
	deck, top, _ := deck.Pop()
	g.Deck = deck.Clone()
	g.Discard = cards.Collection{top}
	t.clearPiles()

	g.CurrentPlayer = t.players[0].ID
	g.Round++
	g.LastMove = e.clock()
	t.record(EventRoundStarted, g.CurrentPlayer, g.Round)

	if err := verifyIntegrity(t); err != nil {
		return err
	}
	e.logger.Info("round started",
		zap.String("game_id", g.ID.String()),
		zap.Int("round", g.Round),
		zap.Int("players", len(t.players)),
	)
	return nil
}
