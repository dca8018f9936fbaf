package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine validates and applies actions for every game. Work on one game is
// serialized through the Locker; games never share mutable state.
type Engine struct {
	logger   *zap.Logger
	store    Store
	locker   Locker
	registry *rules.Registry
	replays  *ReplayRecorder

	handSize         int
	defaultPhases    []string
	defaultTimeLimit time.Duration
	botMaxMoves      int
	botMoveDelay     time.Duration
	now              func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu                  sync.RWMutex
	notificationHandler NotificationHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithHandSize sets how many cards each player is dealt per round.
func WithHandSize(n int) Option {
	return func(e *Engine) { e.handSize = n }
}

// WithDefaultPhases sets the phase list of newly created games.
func WithDefaultPhases(phases []string) Option {
	return func(e *Engine) { e.defaultPhases = append([]string(nil), phases...) }
}

// WithDefaultTimeLimit sets the per-move time limit of newly created games.
// Zero disables slow-player skipping.
func WithDefaultTimeLimit(d time.Duration) Option {
	return func(e *Engine) { e.defaultTimeLimit = d }
}

// WithBotMaxMoves bounds how many consecutive bot moves RunBots applies.
func WithBotMaxMoves(n int) Option {
	return func(e *Engine) { e.botMaxMoves = n }
}

// WithBotMoveDelay pauses RunBots between bot moves so people can follow them.
func WithBotMoveDelay(d time.Duration) Option {
	return func(e *Engine) { e.botMoveDelay = d }
}

// WithRegistry shares a compiled-rule cache.
func WithRegistry(reg *rules.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithReplayRecorder records a snapshot after every change to a running game
// and writes the replay out once the game is won.
func WithReplayRecorder(rec *ReplayRecorder) Option {
	return func(e *Engine) { e.replays = rec }
}

// WithRandSource makes shuffles and bot choices reproducible.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rng = rand.New(src) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given store and locker.
func NewEngine(store Store, locker Locker, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:        logger,
		store:         store,
		locker:        locker,
		handSize:      10,
		defaultPhases: append([]string(nil), rules.DefaultPhases...),
		botMaxMoves:   200,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = rules.NewRegistry(128, time.Hour)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// SetNotificationHandler registers the listener for game changes.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

// emit must be called without holding a game lock; the handler may call back
// into the engine.
func (e *Engine) emit(n GameNotification) {
	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()

	if handler != nil {
		handler(n)
	}
}

func (e *Engine) notifyGame(gameID, playerID uuid.UUID, events []Event) {
	e.emit(GameNotification{
		Type:      NotificationGameUpdate,
		GameID:    gameID,
		PlayerID:  playerID,
		Timestamp: e.clock(),
		Events:    events,
	})
}

// clock returns the current time at the precision the database stores.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) shuffle(fn func(rng *rand.Rand)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	fn(e.rng)
}

// Registry exposes the compiled-rule cache.
func (e *Engine) Registry() *rules.Registry { return e.registry }

// withGame holds the game's lock while fn inspects and mutates a freshly
// loaded table. The table is written back only when fn succeeds.
func (e *Engine) withGame(ctx context.Context, gameID uuid.UUID, fn func(t *table) error) (*table, error) {
	unlock, err := e.locker.Lock(ctx, gameLockKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("lock game %s: %w", gameID, err)
	}
	defer unlock()

	t, err := loadTable(ctx, e.store, gameID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	t.game.UpdatedAt = e.clock()
	if err := e.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		return t.save(ctx, tx)
	}); err != nil {
		e.logger.Error("failed to persist game",
			zap.String("game_id", gameID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("save game %s: %w", gameID, err)
	}
	e.recordReplay(t)
	return t, nil
}

func (e *Engine) recordReplay(t *table) {
	if e.replays == nil || (!t.game.InProgress && !t.game.Over()) {
		return
	}
	e.replays.record(t, e.clock())
	if !t.game.Over() {
		return
	}
	if err := e.replays.SaveReplay(t.game.ID); err != nil {
		e.logger.Warn("failed to save replay",
			zap.String("game_id", t.game.ID.String()),
			zap.Error(err),
		)
	}
}

// Replay returns the recorded history of a game, running or finished.
func (e *Engine) Replay(gameID uuid.UUID) (*Replay, error) {
	if e.replays == nil {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNoReplay)
	}
	return e.replays.LoadReplay(gameID)
}

// ProcessAction validates and applies one player action. Rejections are
// returned as *IllegalActionError, *NotFoundError or ErrGameOver and leave
// the stored state unchanged.
func (e *Engine) ProcessAction(ctx context.Context, action Action) (*Result, error) {
	actor, err := e.store.GetPlayer(ctx, action.PlayerID)
	if err != nil {
		return nil, err
	}

	t, err := e.withGame(ctx, actor.GameID, func(t *table) error {
		t.actor, t.action = action.PlayerID, action.Type
		return e.apply(t, action)
	})
	if err != nil {
		if IsRejection(err) {
			e.logger.Debug("action rejected",
				zap.String("game_id", actor.GameID.String()),
				zap.String("player_id", action.PlayerID.String()),
				zap.String("action", string(action.Type)),
				zap.Error(err),
			)
		} else {
			e.logger.Error("action failed",
				zap.String("game_id", actor.GameID.String()),
				zap.String("action", string(action.Type)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	result := e.result(t, action.PlayerID)
	e.notifyGame(t.game.ID, action.PlayerID, t.events)
	return result, nil
}

func (e *Engine) result(t *table, playerID uuid.UUID) *Result {
	res := &Result{
		Game:   e.gameView(t),
		Events: t.events,
	}
	if p := t.player(playerID); p != nil {
		res.Player = e.playerView(t, p)
	}
	if cur := t.player(t.game.CurrentPlayer); cur != nil && t.game.InProgress && !t.game.Over() {
		res.NextIsBot = t.isBot(cur)
	}
	return res
}

func (e *Engine) apply(t *table, action Action) error {
	g := t.game
	p := t.player(action.PlayerID)
	if p == nil {
		return notFound("player", action.PlayerID)
	}
	if g.Over() {
		return ErrGameOver
	}

	switch action.Type {
	case ActionSortByColor:
		p.Hand.SortByColor()
		t.record(EventSorted, p.ID, 0)
		return nil
	case ActionSortByRank:
		p.Hand.SortByRank()
		t.record(EventSorted, p.ID, 0)
		return nil
	}

	if !g.InProgress {
		return illegal(action.Type, "game has not started")
	}
	if g.CurrentPlayer != p.ID {
		return illegal(action.Type, "it is not your turn")
	}
	if len(p.SkipCards) > 0 && action.Type != ActionDoSkip {
		return illegal(action.Type, "you are skipped and must play do_skip")
	}

	switch action.Type {
	case ActionDrawDeck:
		return e.drawDeck(t, p)
	case ActionDrawDiscard:
		return e.drawDiscard(t, p)
	case ActionDoSkip:
		return e.doSkip(t, p)
	case ActionCompletePhase:
		return e.completePhase(t, p, action)
	case ActionPutDown:
		return e.putDown(t, p, action)
	case ActionSkipPlayer:
		return e.skipPlayer(t, p, action)
	case ActionDiscard:
		return e.discard(t, p, action)
	default:
		return illegal(action.Type, "unknown action")
	}
}

func (e *Engine) drawDeck(t *table, p *Player) error {
	if p.DrewCard {
		return illegal(ActionDrawDeck, "you already drew a card this turn")
	}
	g := t.game
	if len(g.Deck) == 0 && !e.reshuffle(t) {
		return illegal(ActionDrawDeck, "no cards left to draw")
	}
	deck, card, _ := g.Deck.Pop()
	g.Deck = deck
	p.Hand = append(p.Hand, card)
	p.DrewCard = true
	t.record(EventDrew, p.ID, 1)
	if len(g.Deck) == 0 {
		e.reshuffle(t)
	}
	return nil
}

// reshuffle turns the discard pile into the new deck.
func (e *Engine) reshuffle(t *table) bool {
	g := t.game
	if len(g.Discard) == 0 {
		return false
	}
	g.Deck = g.Discard
	g.Discard = cards.Collection{}
	e.shuffle(func(rng *rand.Rand) { g.Deck.Shuffle(rng) })
	t.record(EventDeckReshuffled, uuid.Nil, len(g.Deck))
	e.logger.Info("discard pile reshuffled into deck",
		zap.String("game_id", g.ID.String()),
		zap.Int("cards", len(g.Deck)),
	)
	return true
}

func (e *Engine) drawDiscard(t *table, p *Player) error {
	if p.DrewCard {
		return illegal(ActionDrawDiscard, "you already drew a card this turn")
	}
	g := t.game
	top, ok := g.Discard.Top()
	if !ok {
		return illegal(ActionDrawDiscard, "the discard pile is empty")
	}
	if top.IsSkip() {
		return illegal(ActionDrawDiscard, "a skip card cannot be drawn from the discard pile")
	}
	g.Discard, top, _ = g.Discard.Pop()
	p.Hand = append(p.Hand, top)
	p.DrewCard = true
	t.record(EventDrew, p.ID, 1)
	return nil
}

func (e *Engine) doSkip(t *table, p *Player) error {
	if len(p.SkipCards) == 0 {
		return illegal(ActionDoSkip, "you have no pending skip cards")
	}
	rest, card := p.SkipCards.Remove(0)
	p.SkipCards = rest
	t.game.Discard = append(t.game.Discard, card)
	t.record(EventSkipConsumed, p.ID, 1)
	e.advance(t, p)
	return nil
}

func (e *Engine) completePhase(t *table, p *Player, action Action) error {
	if !p.DrewCard {
		return illegal(ActionCompletePhase, "draw a card first")
	}
	if p.CompletedPhase {
		return illegal(ActionCompletePhase, "you already completed your phase")
	}
	if len(action.Cards) == 0 {
		return illegal(ActionCompletePhase, "no cards submitted")
	}
	spec := t.game.PhaseList[p.PhaseIndex]
	rule, err := e.registry.Get(spec)
	if err != nil {
		return fmt.Errorf("compile phase %q: %w", spec, err)
	}

	picked, rest, err := takeFromHand(p.Hand, action.Cards)
	if err != nil {
		return illegal(ActionCompletePhase, "%v", err)
	}
	if !rule.IsFullyAccepted(picked) {
		return illegal(ActionCompletePhase, "%s does not complete phase %s", picked, spec)
	}

	p.Hand = rest
	p.CompletedPhase = true
	offset := 0
	for _, comp := range rule.Components() {
		size := comp.Size
		if size == rules.Unbounded {
			size = len(picked)
		}
		t.addPile(comp.Generalized(), picked[offset:offset+size].Clone(), e.clock())
		offset += size
	}
	t.record(EventPhaseCompleted, p.ID, len(picked))
	_, err = e.finishIfEmpty(t, p)
	return err
}

func (e *Engine) putDown(t *table, p *Player, action Action) error {
	if !p.DrewCard {
		return illegal(ActionPutDown, "draw a card first")
	}
	if !p.CompletedPhase {
		return illegal(ActionPutDown, "complete your phase first")
	}
	pile := t.pile(action.PhaseDeckID)
	if pile == nil {
		return notFound("phase deck", action.PhaseDeckID)
	}
	if action.Direction != DirectionStart && action.Direction != DirectionEnd {
		return illegal(ActionPutDown, "invalid direction %q", action.Direction)
	}
	if len(action.Cards) == 0 {
		return illegal(ActionPutDown, "no cards submitted")
	}
	picked, rest, err := takeFromHand(p.Hand, action.Cards)
	if err != nil {
		return illegal(ActionPutDown, "%v", err)
	}

	var extended cards.Collection
	if action.Direction == DirectionStart {
		extended = append(picked.Clone(), pile.Deck...)
	} else {
		extended = append(pile.Deck.Clone(), picked...)
	}
	rule, err := e.registry.Get(pile.Phase)
	if err != nil {
		return fmt.Errorf("compile pile phase %q: %w", pile.Phase, err)
	}
	if !rule.IsFullyAccepted(extended) {
		return illegal(ActionPutDown, "%s does not fit at the %s of %s", picked, action.Direction, pile.Deck)
	}

	pile.Deck = extended
	p.Hand = rest
	t.record(EventPutDown, p.ID, len(picked))
	_, err = e.finishIfEmpty(t, p)
	return err
}

func (e *Engine) skipPlayer(t *table, p *Player, action Action) error {
	if !p.DrewCard {
		return illegal(ActionSkipPlayer, "draw a card first")
	}
	idx := -1
	for i, c := range p.Hand {
		if c.IsSkip() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return illegal(ActionSkipPlayer, "you have no skip card")
	}
	target := t.playerByRef(action.To)
	if target == nil {
		return notFound("player", action.To)
	}
	if target.ID == p.ID {
		return illegal(ActionSkipPlayer, "you cannot skip yourself")
	}

	rest, card := p.Hand.Remove(idx)
	p.Hand = rest
	target.SkipCards = append(target.SkipCards, card)
	t.record(EventPlayerSkipped, target.ID, len(target.SkipCards))
	return e.passTurn(t, p)
}

func (e *Engine) discard(t *table, p *Player, action Action) error {
	if !p.DrewCard {
		return illegal(ActionDiscard, "draw a card first")
	}
	want := action.Cards
	if action.CardID != uuid.Nil {
		want = cards.Collection{{ID: action.CardID}}
	}
	if len(want) != 1 {
		return illegal(ActionDiscard, "name exactly one card to discard")
	}
	picked, rest, err := takeFromHand(p.Hand, want)
	if err != nil {
		return illegal(ActionDiscard, "%v", err)
	}

	p.Hand = rest
	t.game.Discard = append(t.game.Discard, picked[0])
	t.record(EventDiscarded, p.ID, 1)
	return e.passTurn(t, p)
}

// takeFromHand resolves the submitted cards against hand, keeping the
// submitted order. Cards with an id must be that exact hand card; cards
// without one take the first unused hand card of the same face.
func takeFromHand(hand, want cards.Collection) (picked, rest cards.Collection, err error) {
	used := make([]bool, len(hand))
	picked = make(cards.Collection, 0, len(want))
	for _, w := range want {
		idx := -1
		for i, c := range hand {
			if used[i] {
				continue
			}
			if w.ID != uuid.Nil {
				if c.ID == w.ID {
					idx = i
					break
				}
				continue
			}
			if c.Equal(w) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if w.ID != uuid.Nil {
				return nil, nil, errors.New("card " + w.ID.String() + " is not in your hand")
			}
			return nil, nil, errors.New("card " + w.String() + " is not in your hand")
		}
		used[idx] = true
		picked = append(picked, hand[idx])
	}
	rest = make(cards.Collection, 0, len(hand)-len(picked))
	for i, c := range hand {
		if !used[i] {
			rest = append(rest, c)
		}
	}
	return picked, rest, nil
}
