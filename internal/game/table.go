package game

import (
	"context"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
)

// table is one game loaded for mutation: the game row, its seats in turn
// order, the users behind them and the piles on the table.
type table struct {
	game    *Game
	players []*Player
	users   map[uuid.UUID]*User
	piles   []*PhaseDeck

	removedPlayers []uuid.UUID
	removedPiles   []uuid.UUID

	events []Event

	// actor and action describe the change, for the replay.
	actor  uuid.UUID
	action ActionType
}

func loadTable(ctx context.Context, store Store, gameID uuid.UUID) (*table, error) {
	g, err := store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := store.PlayersInGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	piles, err := store.PhaseDecksInGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	t := &table{
		game:    g,
		players: players,
		users:   make(map[uuid.UUID]*User, len(players)),
		piles:   piles,
	}
	for _, p := range players {
		u, err := store.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		t.users[u.ID] = u
	}
	return t, nil
}

func (t *table) save(ctx context.Context, tx Store) error {
	if err := tx.SaveGame(ctx, t.game); err != nil {
		return err
	}
	for _, id := range t.removedPlayers {
		if err := tx.DeletePlayer(ctx, id); err != nil {
			return err
		}
	}
	for _, p := range t.players {
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
	}
	for _, id := range t.removedPiles {
		if err := tx.DeletePhaseDeck(ctx, id); err != nil {
			return err
		}
	}
	for _, d := range t.piles {
		if err := tx.SavePhaseDeck(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) record(kind EventType, playerID uuid.UUID, count int) {
	t.events = append(t.events, Event{Type: kind, PlayerID: playerID, Count: count})
}

func (t *table) player(id uuid.UUID) *Player {
	for _, p := range t.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// playerByRef accepts either a player id or the id of the user in that seat.
func (t *table) playerByRef(ref uuid.UUID) *Player {
	if p := t.player(ref); p != nil {
		return p
	}
	for _, p := range t.players {
		if p.UserID == ref {
			return p
		}
	}
	return nil
}

func (t *table) pile(id uuid.UUID) *PhaseDeck {
	for _, d := range t.piles {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (t *table) addPile(phase string, deck cards.Collection, now time.Time) *PhaseDeck {
	d := &PhaseDeck{
		ID:        uuid.New(),
		GameID:    t.game.ID,
		Phase:     phase,
		Deck:      deck,
		Position:  len(t.piles),
		CreatedAt: now,
	}
	t.piles = append(t.piles, d)
	return d
}

func (t *table) clearPiles() {
	for _, d := range t.piles {
		t.removedPiles = append(t.removedPiles, d.ID)
	}
	t.piles = nil
}

func (t *table) removePlayer(id uuid.UUID) {
	kept := t.players[:0]
	for _, p := range t.players {
		if p.ID == id {
			t.removedPlayers = append(t.removedPlayers, id)
			continue
		}
		kept = append(kept, p)
	}
	t.players = kept
	t.reseat()
}

// reseat renumbers turn indexes to match the slice order.
func (t *table) reseat() {
	for i, p := range t.players {
		p.TurnIndex = i
	}
}

func (t *table) order() *rules.TurnOrder {
	seats := make([]uuid.UUID, len(t.players))
	for i, p := range t.players {
		seats[i] = p.ID
	}
	return rules.NewTurnOrder(seats)
}

func (t *table) isBot(p *Player) bool {
	u := t.users[p.UserID]
	return u != nil && u.IsBot
}

func (t *table) name(p *Player) string {
	if u := t.users[p.UserID]; u != nil {
		if u.Display != "" {
			return u.Display
		}
		return u.Name
	}
	return ""
}

// allCards gathers every card the game currently accounts for.
func (t *table) allCards() cards.Collection {
	all := make(cards.Collection, 0, cards.DeckSize)
	all = append(all, t.game.Deck...)
	all = append(all, t.game.Discard...)
	for _, p := range t.players {
		all = append(all, p.Hand...)
		all = append(all, p.SkipCards...)
	}
	for _, d := range t.piles {
		all = append(all, d.Deck...)
	}
	return all
}
