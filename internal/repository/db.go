package repository

import (
	"context"
	"fmt"

	"github.com/VelascoAMath/phase.ten/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDB opens a pool and checks that the database answers.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &DB{pool: pool, logger: logger}, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.pool.Close()
}

// Stats reports pool usage.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	display    TEXT NOT NULL,
	token      TEXT NOT NULL,
	is_bot     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
	id             UUID PRIMARY KEY,
	phase_list     JSONB NOT NULL,
	deck           JSONB NOT NULL,
	discard        JSONB NOT NULL,
	current_player UUID,
	host           UUID NOT NULL REFERENCES users(id),
	in_progress    BOOLEAN NOT NULL DEFAULT FALSE,
	winner         UUID,
	round          INTEGER NOT NULL DEFAULT 0,
	last_move      TIMESTAMPTZ NOT NULL,
	time_limit_ms  BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	id              UUID PRIMARY KEY,
	game_id         UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	user_id         UUID NOT NULL REFERENCES users(id),
	hand            JSONB NOT NULL,
	turn_index      INTEGER NOT NULL,
	phase_index     INTEGER NOT NULL DEFAULT 0,
	drew_card       BOOLEAN NOT NULL DEFAULT FALSE,
	completed_phase BOOLEAN NOT NULL DEFAULT FALSE,
	skip_cards      JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS players_game_turn ON players (game_id, turn_index);

CREATE TABLE IF NOT EXISTS gamephasedecks (
	id         UUID PRIMARY KEY,
	game_id    UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	phase      TEXT NOT NULL,
	deck       JSONB NOT NULL,
	position   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS gamephasedecks_game ON gamephasedecks (game_id, position);
`

// Migrate creates the tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	db.logger.Info("database schema ready")
	return nil
}
