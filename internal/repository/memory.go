package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/google/uuid"
)

// Memory is an in-process game.Store. Values are copied on the way in and on
// the way out, so callers never share mutable state with the store.
type Memory struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*game.User
	games   map[uuid.UUID]*game.Game
	players map[uuid.UUID]*game.Player
	piles   map[uuid.UUID]*game.PhaseDeck

	txMu sync.Mutex
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[uuid.UUID]*game.User),
		games:   make(map[uuid.UUID]*game.Game),
		players: make(map[uuid.UUID]*game.Player),
		piles:   make(map[uuid.UUID]*game.PhaseDeck),
	}
}

var _ game.Store = (*Memory)(nil)

// InTx runs fn against the store and restores the previous contents when fn
// fails. Transactions are serialized with each other.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	users, games, players, piles := copyMap(m.users), copyMap(m.games), copyMap(m.players), copyMap(m.piles)
	m.mu.RUnlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.users, m.games, m.players, m.piles = users, games, players, piles
		m.mu.Unlock()
		return err
	}
	return nil
}

// Stored values are replaced, never mutated, so a shallow copy is a snapshot.
func copyMap[V any](in map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) GetGame(_ context.Context, id uuid.UUID) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, &game.NotFoundError{Kind: "game", ID: id.String()}
	}
	return g.Clone(), nil
}

func (m *Memory) SaveGame(_ context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *Memory) DeleteGame(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
	return nil
}

func (m *Memory) GameExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.games[id]
	return ok, nil
}

// ListGames returns every game, oldest first.
func (m *Memory) ListGames(_ context.Context) ([]*game.Game, error) {
	m.mu.RLock()
	out := make([]*game.Game, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) GetPlayer(_ context.Context, id uuid.UUID) (*game.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, &game.NotFoundError{Kind: "player", ID: id.String()}
	}
	return p.Clone(), nil
}

func (m *Memory) SavePlayer(_ context.Context, p *game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = p.Clone()
	return nil
}

func (m *Memory) DeletePlayer(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, id)
	return nil
}

func (m *Memory) PlayerExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.players[id]
	return ok, nil
}

// PlayersInGame returns the seats of a game ordered by turn index.
func (m *Memory) PlayersInGame(_ context.Context, gameID uuid.UUID) ([]*game.Player, error) {
	m.mu.RLock()
	out := make([]*game.Player, 0, 8)
	for _, p := range m.players {
		if p.GameID == gameID {
			out = append(out, p.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

func (m *Memory) GetPhaseDeck(_ context.Context, id uuid.UUID) (*game.PhaseDeck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.piles[id]
	if !ok {
		return nil, &game.NotFoundError{Kind: "phase deck", ID: id.String()}
	}
	return d.Clone(), nil
}

func (m *Memory) SavePhaseDeck(_ context.Context, d *game.PhaseDeck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.piles[d.ID] = d.Clone()
	return nil
}

func (m *Memory) DeletePhaseDeck(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.piles, id)
	return nil
}

// PhaseDecksInGame returns the piles of a game in the order they were laid.
func (m *Memory) PhaseDecksInGame(_ context.Context, gameID uuid.UUID) ([]*game.PhaseDeck, error) {
	m.mu.RLock()
	out := make([]*game.PhaseDeck, 0, 8)
	for _, d := range m.piles {
		if d.GameID == gameID {
			out = append(out, d.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) DeletePhaseDecksInGame(_ context.Context, gameID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.piles {
		if d.GameID == gameID {
			delete(m.piles, id)
		}
	}
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*game.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, &game.NotFoundError{Kind: "user", ID: id.String()}
	}
	out := *u
	return &out, nil
}

func (m *Memory) GetUserByName(_ context.Context, name string) (*game.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Name == name {
			out := *u
			return &out, nil
		}
	}
	return nil, &game.NotFoundError{Kind: "user", ID: name}
}

func (m *Memory) SaveUser(_ context.Context, u *game.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *Memory) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[id]
	return ok, nil
}
