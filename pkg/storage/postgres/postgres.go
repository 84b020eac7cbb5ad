// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and JSONB for deck content.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/slidewright/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const userColumns = "id, email, name, password_hash, is_active, created_at, updated_at"

// CreateUser inserts a user and assigns its ID.
func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	now := timestamp()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, u.Email, u.Name, u.PasswordHash, u.IsActive, now).Scan(&u.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	return s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (*storage.User, error) {
	var u storage.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// UpdateUser writes the mutable fields of u.
func (s *Store) UpdateUser(ctx context.Context, u *storage.User) error {
	now := timestamp()
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET email = $1, name = $2, password_hash = $3, is_active = $4, updated_at = $5
		WHERE id = $6
		RETURNING created_at
	`, u.Email, u.Name, u.PasswordHash, u.IsActive, now, u.ID).Scan(&u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("updating user: %w", err)
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser removes a user. Presentations go with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const presentationColumns = "id, owner_id, title, theme, content, created_at, updated_at"

// CreatePresentation stores a deck for the context owner.
func (s *Store) CreatePresentation(ctx context.Context, p *storage.Presentation) error {
	owner, ok := storage.GetOwner(ctx)
	if !ok {
		return storage.ErrNoOwner
	}

	contentJSON, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("marshaling content: %w", err)
	}

	now := timestamp()
	err = s.pool.QueryRow(ctx, `
		INSERT INTO presentations (owner_id, title, theme, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, owner, p.Title, p.Theme, contentJSON, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("inserting presentation: %w", err)
	}

	p.OwnerID = owner
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPresentation retrieves a deck visible to the context owner.
func (s *Store) GetPresentation(ctx context.Context, id int64) (*storage.Presentation, error) {
	query := "SELECT " + presentationColumns + " FROM presentations WHERE id = $1"
	args := []any{id}

	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = $2"
		args = append(args, owner)
	}

	p, err := scanPresentation(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying presentation: %w", err)
	}
	return p, nil
}

// ListPresentations returns decks newest first.
func (s *Store) ListPresentations(ctx context.Context, skip, limit int) ([]*storage.Presentation, error) {
	query := "SELECT " + presentationColumns + " FROM presentations"
	var args []any

	if owner, ok := storage.GetOwner(ctx); ok {
		query += " WHERE owner_id = $1"
		args = append(args, owner)
	}
	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
	args = append(args, skip)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing presentations: %w", err)
	}
	defer rows.Close()

	out := []*storage.Presentation{}
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning presentation: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presentations: %w", err)
	}
	return out, nil
}

// UpdatePresentation applies a partial update. Absent fields keep their
// stored values through COALESCE.
func (s *Store) UpdatePresentation(ctx context.Context, id int64, upd storage.PresentationUpdate) (*storage.Presentation, error) {
	var contentJSON []byte
	if upd.Content != nil {
		var err error
		contentJSON, err = json.Marshal(upd.Content)
		if err != nil {
			return nil, fmt.Errorf("marshaling content: %w", err)
		}
	}

	query := `
		UPDATE presentations SET
			title = COALESCE($1, title),
			theme = COALESCE($2, theme),
			content = COALESCE($3, content),
			updated_at = $4
		WHERE id = $5`
	args := []any{upd.Title, upd.Theme, nullJSON(contentJSON), timestamp(), id}

	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = $6"
		args = append(args, owner)
	}
	query += " RETURNING " + presentationColumns

	p, err := scanPresentation(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating presentation: %w", err)
	}
	return p, nil
}

// DeletePresentation removes a deck visible to the context owner.
func (s *Store) DeletePresentation(ctx context.Context, id int64) error {
	query := "DELETE FROM presentations WHERE id = $1"
	args := []any{id}

	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = $2"
		args = append(args, owner)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting presentation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanPresentation(row pgx.Row) (*storage.Presentation, error) {
	var p storage.Presentation
	var contentJSON []byte
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Theme, &contentJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contentJSON, &p.Content); err != nil {
		return nil, fmt.Errorf("unmarshaling content: %w", err)
	}
	return &p, nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB parameters.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// timestamp returns the current time at the precision PostgreSQL stores.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
