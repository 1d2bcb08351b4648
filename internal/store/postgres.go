package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tripforge/placescout/internal/model"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS places (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis (
	task_key   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunking (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	state JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	message    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rate_windows (
	tier   TEXT PRIMARY KEY,
	stamps JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_places_name ON places(name);
CREATE INDEX IF NOT EXISTS idx_places_category ON places(category);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetPlace(ctx context.Context, id string) (*model.Place, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM places WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get place %s", id)
	}

	var p model.Place
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal place")
	}
	return &p, nil
}

func (s *PostgresStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM places ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		var p model.Place
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal place")
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "postgres: list places iterate")
}

func (s *PostgresStore) UpsertPlace(ctx context.Context, p *model.Place) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal place")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO places (id, name, category, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   category = EXCLUDED.category,
		   data = EXCLUDED.data,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, string(p.Category), data, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert place %s", p.ID)
}

func (s *PostgresStore) SetAnalysisResult(ctx context.Context, taskKey string, data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis (task_key, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (task_key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		taskKey, blob, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set analysis %s", taskKey)
}

func (s *PostgresStore) GetAnalysisResult(ctx context.Context, taskKey string, out any) (bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM analysis WHERE task_key = $1`, taskKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: get analysis %s", taskKey)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, eris.Wrap(err, "postgres: unmarshal analysis")
	}
	return true, nil
}

func (s *PostgresStore) GetChunking(ctx context.Context) (*model.ChunkState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM chunking WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.ChunkState{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get chunking")
	}

	var cs model.ChunkState
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal chunking")
	}
	return &cs, nil
}

func (s *PostgresStore) SetChunking(ctx context.Context, cs *model.ChunkState) error {
	data, err := json.Marshal(cs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal chunking")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chunking (id, state) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state`,
		data,
	)
	return eris.Wrap(err, "postgres: set chunking")
}

func (s *PostgresStore) ResetChunking(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunking WHERE id = 1`)
	return eris.Wrap(err, "postgres: reset chunking")
}

func (s *PostgresStore) AddNotification(ctx context.Context, message string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Status:    model.NotificationActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, message, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.Message, string(n.Status), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: add notification")
	}
	return n, nil
}

func (s *PostgresStore) UpdateNotification(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET message = $1, updated_at = $2 WHERE id = $3`,
		message, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update notification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("notification not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) DismissNotification(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.NotificationDismissed), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: dismiss notification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("notification not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRateWindow(ctx context.Context, tier string) ([]time.Time, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT stamps FROM rate_windows WHERE tier = $1`, tier).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rate window %s", tier)
	}

	var stamps []time.Time
	if err := json.Unmarshal(data, &stamps); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal rate window")
	}
	return stamps, nil
}

func (s *PostgresStore) SetRateWindow(ctx context.Context, tier string, stamps []time.Time) error {
	data, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rate window")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rate_windows (tier, stamps) VALUES ($1, $2)
		 ON CONFLICT (tier) DO UPDATE SET stamps = EXCLUDED.stamps`,
		tier, data,
	)
	return eris.Wrapf(err, "postgres: set rate window %s", tier)
}
