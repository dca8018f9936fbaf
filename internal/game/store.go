package game

import (
	"context"

	"github.com/google/uuid"
)

// GameRepository persists games.
type GameRepository interface {
	GetGame(ctx context.Context, id uuid.UUID) (*Game, error)
	SaveGame(ctx context.Context, g *Game) error
	DeleteGame(ctx context.Context, id uuid.UUID) error
	GameExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListGames(ctx context.Context) ([]*Game, error)
}

// PlayerRepository persists players. PlayersInGame is ordered by turn index.
type PlayerRepository interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*Player, error)
	SavePlayer(ctx context.Context, p *Player) error
	DeletePlayer(ctx context.Context, id uuid.UUID) error
	PlayerExists(ctx context.Context, id uuid.UUID) (bool, error)
	PlayersInGame(ctx context.Context, gameID uuid.UUID) ([]*Player, error)
}

// PhaseDeckRepository persists table piles. PhaseDecksInGame is ordered by position.
type PhaseDeckRepository interface {
	GetPhaseDeck(ctx context.Context, id uuid.UUID) (*PhaseDeck, error)
	SavePhaseDeck(ctx context.Context, d *PhaseDeck) error
	DeletePhaseDeck(ctx context.Context, id uuid.UUID) error
	PhaseDecksInGame(ctx context.Context, gameID uuid.UUID) ([]*PhaseDeck, error)
	DeletePhaseDecksInGame(ctx context.Context, gameID uuid.UUID) error
}

// UserRepository persists users.
type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store groups every repository the engine needs. Implementations must
// return a *NotFoundError for unknown ids and must hand out copies, so that
// a rejected action never leaks partial mutations.
type Store interface {
	GameRepository
	PlayerRepository
	PhaseDeckRepository
	UserRepository

	// InTx runs fn so that all of its writes commit together or not at all.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Locker serializes work on one game. Lock blocks until the key is held or
// ctx is done; the returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func gameLockKey(id uuid.UUID) string {
	return "phaseten:game:" + id.String()
}
