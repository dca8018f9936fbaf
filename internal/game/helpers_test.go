package game_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/lock"
	"github.com/VelascoAMath/phase.ten/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *repository.Memory
	engine *game.Engine

	mu    sync.Mutex
	now   time.Time
	notes []game.GameNotification
}

func newFixture(t *testing.T, opts ...game.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: repository.NewMemory(),
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []game.Option{
		game.WithRandSource(rand.NewSource(42)),
		game.WithClock(f.clock),
	}
	f.engine = game.NewEngine(f.store, lock.NewLocal(), zaptest.NewLogger(t), append(base, opts...)...)
	f.engine.SetNotificationHandler(func(n game.GameNotification) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.notes = append(f.notes, n)
	})
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advanceClock(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) notifications() []game.GameNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.GameNotification(nil), f.notes...)
}

func (f *fixture) user(name string) *game.User {
	f.t.Helper()
	u, err := f.engine.RegisterUser(f.ctx, name, "")
	require.NoError(f.t, err)
	return u
}

// lobby creates a game hosted by the first name and seats the others.
func (f *fixture) lobby(names ...string) (uuid.UUID, []*game.User) {
	f.t.Helper()
	users := make([]*game.User, len(names))
	for i, name := range names {
		users[i] = f.user(name)
	}
	res, err := f.engine.CreateGame(f.ctx, users[0].ID)
	require.NoError(f.t, err)
	gameID := res.Game.ID
	for _, u := range users[1:] {
		_, err := f.engine.JoinGame(f.ctx, gameID, u.ID)
		require.NoError(f.t, err)
	}
	return gameID, users
}

// started returns a running game and its seats in turn order.
func (f *fixture) started(names ...string) (uuid.UUID, []*game.Player) {
	f.t.Helper()
	gameID, users := f.lobby(names...)
	_, err := f.engine.StartGame(f.ctx, gameID, users[0].ID)
	require.NoError(f.t, err)
	return gameID, f.seats(gameID)
}

func (f *fixture) seats(gameID uuid.UUID) []*game.Player {
	f.t.Helper()
	players, err := f.store.PlayersInGame(f.ctx, gameID)
	require.NoError(f.t, err)
	return players
}

func (f *fixture) game(gameID uuid.UUID) *game.Game {
	f.t.Helper()
	g, err := f.store.GetGame(f.ctx, gameID)
	require.NoError(f.t, err)
	return g
}

func (f *fixture) player(id uuid.UUID) *game.Player {
	f.t.Helper()
	p, err := f.store.GetPlayer(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) checksum(gameID uuid.UUID) string {
	f.t.Helper()
	v, err := f.engine.GetGameView(f.ctx, gameID)
	require.NoError(f.t, err)
	return v.Checksum.Hash
}

// layout describes a hand-picked deal. Hands and skips are indexed by seat;
// the discard lists cards bottom first. Cards not named stay in the deck, or
// go under the discard when emptyDeck is set.
type layout struct {
	hands     []string
	skips     []string
	discard   string
	current   int
	emptyDeck bool
}

// arrange rewrites a running game so that it holds exactly one full deck
// laid out as l describes.
func (f *fixture) arrange(gameID uuid.UUID, l layout) []*game.Player {
	f.t.Helper()
	deck := cards.NewDeck()
	take := func(text string) cards.Collection {
		out := cards.Collection{}
		for _, want := range cards.MustParseList(text) {
			idx := deck.IndexOfFace(want)
			require.GreaterOrEqual(f.t, idx, 0, "no %s left in the deck", want)
			var c cards.Card
			deck, c = deck.Remove(idx)
			out = append(out, c)
		}
		return out
	}

	g := f.game(gameID)
	players := f.seats(gameID)
	for i, p := range players {
		p.Hand = cards.Collection{}
		p.SkipCards = cards.Collection{}
		if i < len(l.hands) {
			p.Hand = take(l.hands[i])
		}
		if i < len(l.skips) {
			p.SkipCards = take(l.skips[i])
		}
		p.DrewCard = false
		p.CompletedPhase = false
	}
	discard := take(l.discard)
	if l.emptyDeck {
		g.Discard = append(deck.Clone(), discard...)
		g.Deck = cards.Collection{}
	} else {
		g.Deck = deck
		g.Discard = discard
	}
	g.CurrentPlayer = players[l.current].ID

	require.NoError(f.t, f.store.InTx(f.ctx, func(ctx context.Context, tx game.Store) error {
		if err := tx.DeletePhaseDecksInGame(ctx, gameID); err != nil {
			return err
		}
		for _, p := range players {
			if err := tx.SavePlayer(ctx, p); err != nil {
				return err
			}
		}
		return tx.SaveGame(ctx, g)
	}))
	return players
}

func (f *fixture) act(a game.Action) (*game.Result, error) {
	return f.engine.ProcessAction(f.ctx, a)
}

func (f *fixture) mustAct(a game.Action) *game.Result {
	f.t.Helper()
	res, err := f.act(a)
	require.NoError(f.t, err, "action %s", a.Type)
	return res
}

func draw(p *game.Player) game.Action {
	return game.Action{PlayerID: p.ID, Type: game.ActionDrawDeck}
}

func hasEvent(events []game.Event, kind game.EventType) bool {
	for _, ev := range events {
		if ev.Type == kind {
			return true
		}
	}
	return false
}

// faces parses card text into cards without identity, which the engine
// matches against the hand by color and rank.
func faces(text string) cards.Collection {
	out := cards.MustParseList(text)
	for i := range out {
		out[i].ID = uuid.Nil
	}
	return out
}
