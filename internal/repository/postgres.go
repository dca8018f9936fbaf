package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a game.Store backed by PostgreSQL. Card collections are kept
// in JSONB columns.
type Postgres struct {
	db *DB
	q  querier
}

// NewPostgres creates a store on top of db.
func NewPostgres(db *DB) *Postgres {
	return &Postgres{db: db, q: db.pool}
}

var _ game.Store = (*Postgres)(nil)

// InTx runs fn inside one transaction. Nested calls reuse the outer one.
func (s *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Store) error) error {
	if _, nested := s.q.(pgx.Tx); nested {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Postgres{db: s.db, q: tx})
	})
}

func notFound(err error, kind string, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &game.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

func encodeCards(c cards.Collection) ([]byte, error) {
	if c == nil {
		c = cards.Collection{}
	}
	return json.Marshal(c)
}

func decodeCards(data []byte) (cards.Collection, error) {
	out := cards.Collection{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode cards: %w", err)
	}
	return out, nil
}

const gameColumns = `id, phase_list, deck, discard, current_player, host, in_progress,
	winner, round, last_move, time_limit_ms, created_at, updated_at`

func scanGame(row pgx.Row) (*game.Game, error) {
	var (
		g                     game.Game
		phases, deck, discard []byte
		current               uuid.NullUUID
		limitMS               int64
	)
	if err := row.Scan(&g.ID, &phases, &deck, &discard, &current, &g.Host, &g.InProgress,
		&g.Winner, &g.Round, &g.LastMove, &limitMS, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phases, &g.PhaseList); err != nil {
		return nil, fmt.Errorf("failed to decode phase list: %w", err)
	}
	var err error
	if g.Deck, err = decodeCards(deck); err != nil {
		return nil, err
	}
	if g.Discard, err = decodeCards(discard); err != nil {
		return nil, err
	}
	g.CurrentPlayer = current.UUID
	g.TimeLimit = time.Duration(limitMS) * time.Millisecond
	return &g, nil
}

func (s *Postgres) GetGame(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	g, err := scanGame(s.q.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "game", id.String())
	}
	return g, nil
}

func (s *Postgres) SaveGame(ctx context.Context, g *game.Game) error {
	phases, err := json.Marshal(g.PhaseList)
	if err != nil {
		return err
	}
	deck, err := encodeCards(g.Deck)
	if err != nil {
		return err
	}
	discard, err := encodeCards(g.Discard)
	if err != nil {
		return err
	}
	current := uuid.NullUUID{UUID: g.CurrentPlayer, Valid: g.CurrentPlayer != uuid.Nil}

	_, err = s.q.Exec(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			phase_list = EXCLUDED.phase_list,
			deck = EXCLUDED.deck,
			discard = EXCLUDED.discard,
			current_player = EXCLUDED.current_player,
			host = EXCLUDED.host,
			in_progress = EXCLUDED.in_progress,
			winner = EXCLUDED.winner,
			round = EXCLUDED.round,
			last_move = EXCLUDED.last_move,
			time_limit_ms = EXCLUDED.time_limit_ms,
			updated_at = EXCLUDED.updated_at`,
		g.ID, string(phases), string(deck), string(discard), current, g.Host, g.InProgress,
		g.Winner, g.Round, g.LastMove, g.TimeLimit.Milliseconds(), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	return nil
}

func (s *Postgres) DeleteGame(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM games WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) GameExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, id)
}

func (s *Postgres) ListGames(ctx context.Context) ([]*game.Game, error) {
	rows, err := s.q.Query(ctx, `SELECT `+gameColumns+` FROM games ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const playerColumns = `id, game_id, user_id, hand, turn_index, phase_index, drew_card,
	completed_phase, skip_cards, created_at`

func scanPlayer(row pgx.Row) (*game.Player, error) {
	var (
		p           game.Player
		hand, skips []byte
	)
	if err := row.Scan(&p.ID, &p.GameID, &p.UserID, &hand, &p.TurnIndex, &p.PhaseIndex,
		&p.DrewCard, &p.CompletedPhase, &skips, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Hand, err = decodeCards(hand); err != nil {
		return nil, err
	}
	if p.SkipCards, err = decodeCards(skips); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) GetPlayer(ctx context.Context, id uuid.UUID) (*game.Player, error) {
	p, err := scanPlayer(s.q.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "player", id.String())
	}
	return p, nil
}

func (s *Postgres) SavePlayer(ctx context.Context, p *game.Player) error {
	hand, err := encodeCards(p.Hand)
	if err != nil {
		return err
	}
	skips, err := encodeCards(p.SkipCards)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			hand = EXCLUDED.hand,
			turn_index = EXCLUDED.turn_index,
			phase_index = EXCLUDED.phase_index,
			drew_card = EXCLUDED.drew_card,
			completed_phase = EXCLUDED.completed_phase,
			skip_cards = EXCLUDED.skip_cards`,
		p.ID, p.GameID, p.UserID, string(hand), p.TurnIndex, p.PhaseIndex,
		p.DrewCard, p.CompletedPhase, string(skips), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save player %s: %w", p.ID, err)
	}
	return nil
}

func (s *Postgres) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM players WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) PlayerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM players WHERE id = $1)`, id)
}

func (s *Postgres) PlayersInGame(ctx context.Context, gameID uuid.UUID) ([]*game.Player, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY turn_index`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []*game.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const pileColumns = `id, game_id, phase, deck, position, created_at`

func scanPile(row pgx.Row) (*game.PhaseDeck, error) {
	var (
		d    game.PhaseDeck
		deck []byte
	)
	if err := row.Scan(&d.ID, &d.GameID, &d.Phase, &deck, &d.Position, &d.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Deck, err = decodeCards(deck); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Postgres) GetPhaseDeck(ctx context.Context, id uuid.UUID) (*game.PhaseDeck, error) {
	d, err := scanPile(s.q.QueryRow(ctx, `SELECT `+pileColumns+` FROM gamephasedecks WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "phase deck", id.String())
	}
	return d, nil
}

func (s *Postgres) SavePhaseDeck(ctx context.Context, d *game.PhaseDeck) error {
	deck, err := encodeCards(d.Deck)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO gamephasedecks (`+pileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			deck = EXCLUDED.deck,
			position = EXCLUDED.position`,
		d.ID, d.GameID, d.Phase, string(deck), d.Position, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save phase deck %s: %w", d.ID, err)
	}
	return nil
}

func (s *Postgres) DeletePhaseDeck(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM gamephasedecks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete phase deck %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) PhaseDecksInGame(ctx context.Context, gameID uuid.UUID) ([]*game.PhaseDeck, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+pileColumns+` FROM gamephasedecks WHERE game_id = $1 ORDER BY position`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase decks of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []*game.PhaseDeck
	for rows.Next() {
		d, err := scanPile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Postgres) DeletePhaseDecksInGame(ctx context.Context, gameID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM gamephasedecks WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("failed to delete phase decks of game %s: %w", gameID, err)
	}
	return nil
}

const userColumns = `id, name, display, token, is_bot, created_at`

func scanUser(row pgx.Row) (*game.User, error) {
	var u game.User
	if err := row.Scan(&u.ID, &u.Name, &u.Display, &u.Token, &u.IsBot, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*game.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", id.String())
	}
	return u, nil
}

func (s *Postgres) GetUserByName(ctx context.Context, name string) (*game.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1`, name))
	if err != nil {
		return nil, notFound(err, "user", name)
	}
	return u, nil
}

func (s *Postgres) SaveUser(ctx context.Context, u *game.User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display = EXCLUDED.display,
			token = EXCLUDED.token,
			is_bot = EXCLUDED.is_bot`,
		u.ID, u.Name, u.Display, u.Token, u.IsBot, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
}

func (s *Postgres) exists(ctx context.Context, sql string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := s.q.QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}
