package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tripforge/placescout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis (
	task_key   TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS chunking (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	message    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rate_windows (
	tier   TEXT PRIMARY KEY,
	stamps TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_places_name ON places(name);
CREATE INDEX IF NOT EXISTS idx_places_category ON places(category);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPlace(ctx context.Context, id string) (*model.Place, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM places WHERE id = ?`, id)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get place %s", id)
	}

	var p model.Place
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal place")
	}
	return &p, nil
}

func (s *SQLiteStore) ListPlaces(ctx context.Context) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM places ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		var p model.Place
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal place")
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "sqlite: list places iterate")
}

func (s *SQLiteStore) UpsertPlace(ctx context.Context, p *model.Place) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal place")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO places (id, name, category, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   category = excluded.category,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, string(p.Category), string(data), p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert place %s", p.ID)
}

func (s *SQLiteStore) SetAnalysisResult(ctx context.Context, taskKey string, data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis (task_key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(task_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		taskKey, string(blob), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set analysis %s", taskKey)
}

func (s *SQLiteStore) GetAnalysisResult(ctx context.Context, taskKey string, out any) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM analysis WHERE task_key = ?`, taskKey)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: get analysis %s", taskKey)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, eris.Wrap(err, "sqlite: unmarshal analysis")
	}
	return true, nil
}

func (s *SQLiteStore) GetChunking(ctx context.Context) (*model.ChunkState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM chunking WHERE id = 1`)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return &model.ChunkState{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get chunking")
	}

	var cs model.ChunkState
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal chunking")
	}
	return &cs, nil
}

func (s *SQLiteStore) SetChunking(ctx context.Context, cs *model.ChunkState) error {
	data, err := json.Marshal(cs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal chunking")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunking (id, state) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state`,
		string(data),
	)
	return eris.Wrap(err, "sqlite: set chunking")
}

func (s *SQLiteStore) ResetChunking(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunking WHERE id = 1`)
	return eris.Wrap(err, "sqlite: reset chunking")
}

func (s *SQLiteStore) AddNotification(ctx context.Context, message string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Status:    model.NotificationActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, message, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Message, string(n.Status), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: add notification")
	}
	return n, nil
}

func (s *SQLiteStore) UpdateNotification(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET message = ?, updated_at = ? WHERE id = ?`,
		message, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update notification %s", id)
	}
	return checkRowsAffected(res, "notification", id)
}

func (s *SQLiteStore) DismissNotification(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.NotificationDismissed), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: dismiss notification %s", id)
	}
	return checkRowsAffected(res, "notification", id)
}

func (s *SQLiteStore) GetRateWindow(ctx context.Context, tier string) ([]time.Time, error) {
	row := s.db.QueryRowContext(ctx, `SELECT stamps FROM rate_windows WHERE tier = ?`, tier)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get rate window %s", tier)
	}

	var stamps []time.Time
	if err := json.Unmarshal([]byte(data), &stamps); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rate window")
	}
	return stamps, nil
}

func (s *SQLiteStore) SetRateWindow(ctx context.Context, tier string, stamps []time.Time) error {
	data, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rate window")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rate_windows (tier, stamps) VALUES (?, ?)
		 ON CONFLICT(tier) DO UPDATE SET stamps = excluded.stamps`,
		tier, string(data),
	)
	return eris.Wrapf(err, "sqlite: set rate window %s", tier)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
