package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	createSessionsTable = `
		CREATE TABLE IF NOT EXISTS client_sessions (
			session_id TEXT PRIMARY KEY,
			token TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			height DOUBLE PRECISION,
			weight DOUBLE PRECISION,
			diet_preference TEXT NOT NULL DEFAULT '',
			dashboard jsonb NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	sessionColumns = `session_id, token, user_id, username, height, weight, diet_preference, dashboard, created_at, updated_at`

	getSessionQuery = `SELECT ` + sessionColumns + ` FROM client_sessions WHERE session_id = $1`

	getSessionForUpdate = getSessionQuery + ` FOR UPDATE`

	insertSessionQuery = `INSERT INTO client_sessions (` + sessionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateSessionQuery = `
		UPDATE client_sessions
		SET token = $2,
			user_id = $3,
			username = $4,
			height = $5,
			weight = $6,
			diet_preference = $7,
			dashboard = $8,
			updated_at = $9
		WHERE session_id = $1
	`
	deleteSessionQuery = `DELETE FROM client_sessions WHERE session_id = $1`

	deleteExpiredQuery = `DELETE FROM client_sessions WHERE updated_at < $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the session table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create client_sessions: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, s Session) (Session, error) {
	dashboard, err := json.Marshal(s.Dashboard)
	if err != nil {
		return Session{}, err
	}
	_, err = r.db.ExecContext(ctx, insertSessionQuery,
		s.ID,
		s.Token,
		s.UserID,
		s.Username,
		nullFloat(s.Height),
		nullFloat(s.Weight),
		s.DietPreference,
		string(dashboard),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, getSessionQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	s, err := scanSession(tx.QueryRowContext(ctx, getSessionForUpdate, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if err := fn(&s); err != nil {
		return Session{}, err
	}

	dashboard, err := json.Marshal(s.Dashboard)
	if err != nil {
		return Session{}, err
	}
	if _, err := tx.ExecContext(ctx, updateSessionQuery,
		id,
		s.Token,
		s.UserID,
		s.Username,
		nullFloat(s.Height),
		nullFloat(s.Weight),
		s.DietPreference,
		string(dashboard),
		s.UpdatedAt,
	); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteSessionQuery, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredQuery, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s         Session
		height    sql.NullFloat64
		weight    sql.NullFloat64
		dashboard []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&s.ID, &s.Token, &s.UserID, &s.Username, &height, &weight, &s.DietPreference, &dashboard, &createdAt, &updatedAt); err != nil {
		return Session{}, err
	}
	if height.Valid {
		s.Height = &height.Float64
	}
	if weight.Valid {
		s.Weight = &weight.Float64
	}
	if len(dashboard) > 0 {
		if err := json.Unmarshal(dashboard, &s.Dashboard); err != nil {
			return Session{}, fmt.Errorf("decode dashboard of session %s: %w", s.ID, err)
		}
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	return s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
