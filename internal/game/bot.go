package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DecideBotAction picks the next action for me, which must be the current
// player. It reads the arguments and never changes them.
func DecideBotAction(g *Game, me *Player, players []*Player, piles []*PhaseDeck, reg *rules.Registry, rng *rand.Rand) (Action, error) {
	act := Action{PlayerID: me.ID}

	if len(me.SkipCards) > 0 {
		act.Type = ActionDoSkip
		return act, nil
	}

	if !me.DrewCard {
		act.Type = ActionDrawDeck
		takeDiscard, err := wantsDiscard(g, me, piles, reg)
		if err != nil {
			return act, err
		}
		if takeDiscard {
			act.Type = ActionDrawDiscard
		}
		return act, nil
	}

	if !me.CompletedPhase {
		rule, err := reg.Get(g.PhaseList[me.PhaseIndex])
		if err != nil {
			return act, err
		}
		if ok, subset := rule.IsSubsetAccepted(me.Hand); ok {
			act.Type = ActionCompletePhase
			act.Cards = subset
			return act, nil
		}
		if me.Hand.Count(cards.Card.IsSkip) > 0 {
			if target := strongestOpponent(me, players); target != nil {
				act.Type = ActionSkipPlayer
				act.To = target.ID
				return act, nil
			}
		}
		act.Type = ActionDiscard
		act.CardID = leastUseful(me.Hand, rule, rng).ID
		return act, nil
	}

	for _, d := range piles {
		rule, err := reg.Get(d.Phase)
		if err != nil {
			return act, err
		}
		for _, c := range me.Hand {
			if c.IsSkip() {
				continue
			}
			if dir, ok := fitsPile(rule, d.Deck, c); ok {
				act.Type = ActionPutDown
				act.PhaseDeckID = d.ID
				act.Direction = dir
				act.Cards = cards.Collection{c}
				return act, nil
			}
		}
	}

	act.Type = ActionDiscard
	act.CardID = anyNonWild(me.Hand, rng).ID
	return act, nil
}

// wantsDiscard decides between the discard top and a blind draw.
func wantsDiscard(g *Game, me *Player, piles []*PhaseDeck, reg *rules.Registry) (bool, error) {
	top, ok := g.Discard.Top()
	if !ok || top.IsSkip() {
		return false, nil
	}
	if top.IsWild() {
		return true, nil
	}
	if me.CompletedPhase {
		for _, d := range piles {
			rule, err := reg.Get(d.Phase)
			if err != nil {
				return false, err
			}
			if _, fits := fitsPile(rule, d.Deck, top); fits {
				return true, nil
			}
		}
		return false, nil
	}
	rule, err := reg.Get(g.PhaseList[me.PhaseIndex])
	if err != nil {
		return false, err
	}
	with := append(me.Hand.Clone(), top)
	return rule.Score(with) < rule.Score(me.Hand), nil
}

// strongestOpponent returns the opponent furthest along, comparing phase
// index first and completion second. Ties go to the earlier seat.
func strongestOpponent(me *Player, players []*Player) *Player {
	var best *Player
	for _, p := range players {
		if p.ID == me.ID {
			continue
		}
		if best == nil || ahead(p, best) {
			best = p
		}
	}
	return best
}

func ahead(a, b *Player) bool {
	if a.PhaseIndex != b.PhaseIndex {
		return a.PhaseIndex > b.PhaseIndex
	}
	return a.CompletedPhase && !b.CompletedPhase
}

// leastUseful returns the first natural card whose removal keeps the score,
// or else the one whose removal costs the least. Removal is scored against
// the hand alone; the discard top only counts when choosing where to draw.
func leastUseful(hand cards.Collection, rule *rules.PhaseRule, rng *rand.Rand) cards.Card {
	base := rule.Score(hand)
	bestIdx, bestScore := -1, 0
	for i, c := range hand {
		if !c.IsNatural() {
			continue
		}
		rest, _ := hand.Remove(i)
		s := rule.Score(rest)
		if s <= base {
			return c
		}
		if bestIdx < 0 || s < bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx >= 0 {
		return hand[bestIdx]
	}
	return anyNonWild(hand, rng)
}

func anyNonWild(hand cards.Collection, rng *rand.Rand) cards.Card {
	for _, c := range hand {
		if c.IsNatural() {
			return c
		}
	}
	for _, c := range hand {
		if c.IsSkip() {
			return c
		}
	}
	return hand[rng.Intn(len(hand))]
}

// fitsPile reports whether c can be laid at one end of pile.
func fitsPile(rule *rules.PhaseRule, pile cards.Collection, c cards.Card) (Direction, bool) {
	end := append(pile.Clone(), c)
	if rule.IsFullyAccepted(end) {
		return DirectionEnd, true
	}
	start := append(cards.Collection{c}, pile...)
	if rule.IsFullyAccepted(start) {
		return DirectionStart, true
	}
	return "", false
}

// RunBots plays for bots while one of them holds the turn. A bot move the
// engine rejects is replaced by a plain draw or discard so the game cannot
// stall on a bot.
func (e *Engine) RunBots(ctx context.Context, gameID uuid.UUID) (int, error) {
	moves := 0
	for moves < e.botMaxMoves {
		if err := ctx.Err(); err != nil {
			return moves, err
		}
		t, err := loadTable(ctx, e.store, gameID)
		if err != nil {
			return moves, err
		}
		g := t.game
		if !g.InProgress || g.Over() {
			return moves, nil
		}
		cur := t.player(g.CurrentPlayer)
		if cur == nil || !t.isBot(cur) {
			return moves, nil
		}

		var action Action
		e.shuffle(func(rng *rand.Rand) {
			action, err = DecideBotAction(g, cur, t.players, t.piles, e.registry, rng)
		})
		if err != nil {
			return moves, fmt.Errorf("bot %s: %w", cur.ID, err)
		}

		_, err = e.ProcessAction(ctx, action)
		if err != nil && IsRejection(err) {
			e.logger.Warn("bot move rejected, falling back",
				zap.String("game_id", gameID.String()),
				zap.String("player_id", cur.ID.String()),
				zap.String("action", string(action.Type)),
				zap.Error(err),
			)
			_, err = e.ProcessAction(ctx, fallbackAction(cur))
		}
		if err != nil {
			return moves, fmt.Errorf("bot %s: %w", cur.ID, err)
		}
		moves++

		if e.botMoveDelay > 0 {
			select {
			case <-ctx.Done():
				return moves, ctx.Err()
			case <-time.After(e.botMoveDelay):
			}
		}
	}
	e.logger.Warn("bot move limit reached",
		zap.String("game_id", gameID.String()),
		zap.Int("moves", moves),
	)
	return moves, nil
}

func fallbackAction(p *Player) Action {
	switch {
	case len(p.SkipCards) > 0:
		return Action{PlayerID: p.ID, Type: ActionDoSkip}
	case !p.DrewCard:
		return Action{PlayerID: p.ID, Type: ActionDrawDeck}
	default:
		return Action{PlayerID: p.ID, Type: ActionDiscard, CardID: p.Hand[0].ID}
	}
}
