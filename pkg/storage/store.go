package storage

import (
	"context"
	"time"

	"github.com/rhuss/slidewright/pkg/api"
)

// User is a registered account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Response returns the public view of the user.
func (u *User) Response() api.UserResponse {
	return api.UserResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Presentation is a deck saved by a user.
type Presentation struct {
	ID        int64
	OwnerID   int64
	Title     string
	Theme     string
	Content   api.Presentation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Response returns the API representation including content.
func (p *Presentation) Response() api.PresentationResponse {
	content := p.Content
	return api.PresentationResponse{
		ID:        p.ID,
		Title:     p.Title,
		Theme:     p.Theme,
		Content:   &content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ListItem returns the summary representation.
func (p *Presentation) ListItem() api.PresentationListItem {
	return api.PresentationListItem{
		ID:        p.ID,
		Title:     p.Title,
		Theme:     p.Theme,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PresentationUpdate lists the fields to change. Nil fields are left untouched.
type PresentationUpdate struct {
	Title   *string
	Theme   *string
	Content *api.Presentation
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts u and fills in its ID and timestamps.
	// Returns ErrConflict if the email is already registered.
	CreateUser(ctx context.Context, u *User) error

	// GetUser returns the user with the given ID or ErrNotFound.
	GetUser(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail returns the user with the given email or ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser writes the email, name, password hash and active flag of u.
	// Returns ErrConflict if the new email belongs to another user.
	UpdateUser(ctx context.Context, u *User) error

	// DeleteUser removes the user and all of their presentations.
	DeleteUser(ctx context.Context, id int64) error
}

// PresentationStore persists decks. Every method is scoped to the owner
// set with SetOwner; records of other owners behave as if absent.
type PresentationStore interface {
	// CreatePresentation inserts p for the context owner and fills in its
	// ID, owner and timestamps. Returns ErrNoOwner without an owner.
	CreatePresentation(ctx context.Context, p *Presentation) error

	GetPresentation(ctx context.Context, id int64) (*Presentation, error)

	// ListPresentations returns at most limit decks, newest first, after
	// skipping skip records.
	ListPresentations(ctx context.Context, skip, limit int) ([]*Presentation, error)

	UpdatePresentation(ctx context.Context, id int64, upd PresentationUpdate) (*Presentation, error)

	DeletePresentation(ctx context.Context, id int64) error
}

// Store combines both stores with lifecycle methods.
type Store interface {
	UserStore
	PresentationStore

	// HealthCheck verifies that the backend is reachable.
	HealthCheck(ctx context.Context) error

	Close() error
}
