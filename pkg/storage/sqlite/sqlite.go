// Package sqlite provides an embedded SQLite implementation of storage.Store
// built on the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/slidewright/pkg/storage"
)

// timeLayout has a fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed storage.Store.
type Store struct {
	db   *sql.DB
	path string
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path and applies migrations.
// Pragmas are set through the DSN so that every pooled connection gets them.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// CreateUser inserts a user and assigns its ID.
func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash, u.IsActive, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

const userColumns = "id, email, name, password_hash, is_active, created_at, updated_at"

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	return s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetUserByEmail retrieves a user by email. The column collates NOCASE.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (*storage.User, error) {
	var u storage.User
	var created, updated string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser writes the mutable fields of u.
func (s *Store) UpdateUser(ctx context.Context, u *storage.User) error {
	now := time.Now().UTC()
	var created string
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET email = ?, name = ?, password_hash = ?, is_active = ?, updated_at = ?
		WHERE id = ?
		RETURNING created_at`,
		u.Email, u.Name, u.PasswordHash, u.IsActive, formatTime(now), u.ID,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser removes a user and, through the foreign key, their presentations.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOneRow(res)
}

const presentationColumns = "id, owner_id, title, theme, content, created_at, updated_at"

// CreatePresentation stores a deck for the context owner.
func (s *Store) CreatePresentation(ctx context.Context, p *storage.Presentation) error {
	owner, ok := storage.GetOwner(ctx)
	if !ok {
		return storage.ErrNoOwner
	}

	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO presentations (owner_id, title, theme, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		owner, p.Title, p.Theme, string(content), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert presentation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("presentation id: %w", err)
	}

	p.ID = id
	p.OwnerID = owner
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPresentation retrieves a deck visible to the context owner.
func (s *Store) GetPresentation(ctx context.Context, id int64) (*storage.Presentation, error) {
	query := "SELECT " + presentationColumns + " FROM presentations WHERE id = ?"
	args := []any{id}
	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}

	p, err := scanPresentation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query presentation: %w", err)
	}
	return p, nil
}

// ListPresentations returns decks newest first.
func (s *Store) ListPresentations(ctx context.Context, skip, limit int) ([]*storage.Presentation, error) {
	query := "SELECT " + presentationColumns + " FROM presentations"
	var args []any
	if owner, ok := storage.GetOwner(ctx); ok {
		query += " WHERE owner_id = ?"
		args = append(args, owner)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	out := []*storage.Presentation{}
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presentations: %w", err)
	}
	return out, nil
}

// UpdatePresentation applies a partial update.
func (s *Store) UpdatePresentation(ctx context.Context, id int64, upd storage.PresentationUpdate) (*storage.Presentation, error) {
	var content *string
	if upd.Content != nil {
		data, err := json.Marshal(upd.Content)
		if err != nil {
			return nil, fmt.Errorf("marshal content: %w", err)
		}
		c := string(data)
		content = &c
	}

	query := `
		UPDATE presentations SET
			title = COALESCE(?, title),
			theme = COALESCE(?, theme),
			content = COALESCE(?, content),
			updated_at = ?
		WHERE id = ?`
	args := []any{upd.Title, upd.Theme, content, formatTime(time.Now().UTC()), id}
	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}
	query += " RETURNING " + presentationColumns

	p, err := scanPresentation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update presentation: %w", err)
	}
	return p, nil
}

// DeletePresentation removes a deck visible to the context owner.
func (s *Store) DeletePresentation(ctx context.Context, id int64) error {
	query := "DELETE FROM presentations WHERE id = ?"
	args := []any{id}
	if owner, ok := storage.GetOwner(ctx); ok {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	return expectOneRow(res)
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPresentation(row rowScanner) (*storage.Presentation, error) {
	var p storage.Presentation
	var content, created, updated string
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Theme, &content, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
