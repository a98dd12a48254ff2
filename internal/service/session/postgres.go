package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS honeypot_session_snapshots (
	id         SMALLINT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresPersister keeps the snapshot as a single JSONB row. The upsert is one
// statement, so readers observe either the old or the new snapshot.
type PostgresPersister struct {
	pool *pgxpool.Pool
}

// NewPostgresPersister connects to databaseURL and ensures the snapshot table exists.
func NewPostgresPersister(ctx context.Context, databaseURL string) (*PostgresPersister, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &PostgresPersister{pool: pool}, nil
}

func (p *PostgresPersister) Load(ctx context.Context) (map[string]chat.Session, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM honeypot_session_snapshots WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

func (p *PostgresPersister) Save(ctx context.Context, sessions map[string]chat.Session) error {
	data, err := encodeSnapshot(sessions)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO honeypot_session_snapshots (id, data, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Close() {
	p.pool.Close()
}
