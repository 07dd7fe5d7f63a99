package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver string
	schema []string
	// rebind rewrites $n placeholders to ? for drivers that only take positional markers.
	rebind bool
}

var dialects = map[string]dialect{
	"postgres": {driver: "postgres", schema: postgresSchema},
	"pgx":      {driver: "pgx", schema: postgresSchema},
	"sqlite":   {driver: "sqlite", schema: sqliteSchema, rebind: true},
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		node       TEXT,
		flags      TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS session_logs (
		id         BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		sender     TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS session_logs_session_idx ON session_logs (session_id, id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		node       TEXT,
		flags      TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS session_logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		sender     TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS session_logs_session_idx ON session_logs (session_id, id)`,
}

var placeholder = regexp.MustCompile(`\$\d+`)

type repo struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL opens a database-backed store. driver is one of "postgres" (lib/pq),
// "pgx" (pgx stdlib) or "sqlite" (modernc). The schema is created if missing.
func OpenSQL(ctx context.Context, driver, dsn string) (Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("session: unsupported db driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", driver, err)
	}
	if d.rebind {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: ping %s: %w", driver, err)
	}
	r := &repo{db: db, dialect: d}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("session: ensure schema: %w", err)
		}
	}
	return r, nil
}

func (r *repo) q(query string) string {
	if !r.dialect.rebind {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

func (r *repo) ensure(ctx context.Context, ex execer, id string) error {
	_, err := ex.ExecContext(ctx, r.q(`
		INSERT INTO sessions (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`), id)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *repo) GetOrCreate(ctx context.Context, id string) (Session, error) {
	if err := r.ensure(ctx, r.db, id); err != nil {
		return Session{}, err
	}

	s := Session{ID: id, Logs: []Log{}}

	var node sql.NullString
	var flags string
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT node, flags FROM sessions WHERE id = $1
	`), id).Scan(&node, &flags)
	if err != nil {
		return Session{}, err
	}
	if node.Valid {
		st := &State{Node: node.String, Flags: []string{}}
		if err := json.Unmarshal([]byte(flags), &st.Flags); err != nil {
			return Session{}, fmt.Errorf("session: decode flags: %w", err)
		}
		s.State = st
	}

	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT sender, text
		FROM session_logs
		WHERE session_id = $1
		ORDER BY id ASC
	`), id)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var l Log
		var sender string
		if err := rows.Scan(&sender, &l.Text); err != nil {
			return Session{}, err
		}
		l.From = Sender(sender)
		s.Logs = append(s.Logs, l)
	}
	return s, rows.Err()
}

func (r *repo) Append(ctx context.Context, id string, log Log) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.ensure(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO session_logs (session_id, sender, text)
		VALUES ($1, $2, $3)
	`), id, string(log.From), log.Text); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repo) SetState(ctx context.Context, id string, state State) error {
	flags := state.Flags
	if flags == nil {
		flags = []string{}
	}
	b, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.q(`
		INSERT INTO sessions (id, node, flags) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET node = excluded.node, flags = excluded.flags, updated_at = CURRENT_TIMESTAMP
	`), id, state.Node, string(b))
	return err
}

func (r *repo) Close() error {
	return r.db.Close()
}
