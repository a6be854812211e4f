package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGConfig holds PostgreSQL connection configuration.
type PGConfig struct {
	URL      string `yaml:"url" json:"url"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
	MinConns int32  `yaml:"min_conns" json:"min_conns"`
}

// PGStore persists widget state blobs in a widget_state table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to PostgreSQL and ensures the state table exists.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPGStoreWithPool wraps an existing pool without schema setup. Intended
// for tests and embedders that manage migrations themselves.
func NewPGStoreWithPool(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS widget_state (
			widget_id  UUID PRIMARY KEY,
			data       JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure widget_state schema: %w", err)
	}
	return nil
}

// Pool returns the underlying pgxpool.Pool.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Close closes the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

// Load returns the persisted state or an empty State if no row exists.
func (s *PGStore) Load(ctx context.Context, widgetID uuid.UUID) (State, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM widget_state WHERE widget_id = $1`, widgetID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", widgetID, err)
	}
	return DecodeState(data)
}

// Save upserts the state blob for the widget.
func (s *PGStore) Save(ctx context.Context, widgetID uuid.UUID, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO widget_state (widget_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (widget_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		widgetID, data)
	if err != nil {
		return fmt.Errorf("save state %s: %w", widgetID, err)
	}
	return nil
}

// Delete discards the persisted state row for the widget.
func (s *PGStore) Delete(ctx context.Context, widgetID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM widget_state WHERE widget_id = $1`, widgetID); err != nil {
		return fmt.Errorf("delete state %s: %w", widgetID, err)
	}
	return nil
}
