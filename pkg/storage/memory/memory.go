// Package memory provides an in-memory implementation of storage.Store
// for tests and single-process deployments. Records are lost when the
// process restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]*storage.User
	emails        map[string]int64 // lower-cased email -> user ID
	presentations map[int64]*storage.Presentation
	nextUserID    int64
	nextDeckID    int64
	now           func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:         make(map[int64]*storage.User),
		emails:        make(map[string]int64),
		presentations: make(map[int64]*storage.Presentation),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser inserts a user.
func (s *Store) CreateUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, taken := s.emails[key]; taken {
		return storage.ErrConflict
	}

	s.nextUserID++
	now := s.now()
	u.ID = s.nextUserID
	u.CreatedAt = now
	u.UpdatedAt = now

	stored := *u
	s.users[u.ID] = &stored
	s.emails[key] = u.ID
	return nil
}

// GetUser returns a copy of the user with the given ID.
func (s *Store) GetUser(_ context.Context, id int64) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail looks a user up by email, ignoring case.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// UpdateUser overwrites the mutable fields of an existing user.
func (s *Store) UpdateUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}

	oldKey := strings.ToLower(existing.Email)
	newKey := strings.ToLower(u.Email)
	if newKey != oldKey {
		if _, taken := s.emails[newKey]; taken {
			return storage.ErrConflict
		}
		delete(s.emails, oldKey)
		s.emails[newKey] = u.ID
	}

	existing.Email = u.Email
	existing.Name = u.Name
	existing.PasswordHash = u.PasswordHash
	existing.IsActive = u.IsActive
	existing.UpdatedAt = s.now()

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteUser removes a user and the presentations they own.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.emails, strings.ToLower(u.Email))
	delete(s.users, id)

	for pid, p := range s.presentations {
		if p.OwnerID == id {
			delete(s.presentations, pid)
		}
	}
	return nil
}

// CreatePresentation stores a deck for the context owner.
func (s *Store) CreatePresentation(ctx context.Context, p *storage.Presentation) error {
	owner, ok := storage.GetOwner(ctx)
	if !ok {
		return storage.ErrNoOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDeckID++
	now := s.now()
	p.ID = s.nextDeckID
	p.OwnerID = owner
	p.CreatedAt = now
	p.UpdatedAt = now

	s.presentations[p.ID] = clonePresentation(p)
	return nil
}

// GetPresentation returns a copy of the deck if visible to the context owner.
func (s *Store) GetPresentation(ctx context.Context, id int64) (*storage.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	return clonePresentation(p), nil
}

// ListPresentations returns the owner's decks, newest first.
func (s *Store) ListPresentations(ctx context.Context, skip, limit int) ([]*storage.Presentation, error) {
	owner, scoped := storage.GetOwner(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*storage.Presentation
	for _, p := range s.presentations {
		if scoped && p.OwnerID != owner {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if skip >= len(matched) {
		return []*storage.Presentation{}, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*storage.Presentation, len(matched))
	for i, p := range matched {
		out[i] = clonePresentation(p)
	}
	return out, nil
}

// UpdatePresentation applies a partial update.
func (s *Store) UpdatePresentation(ctx context.Context, id int64, upd storage.PresentationUpdate) (*storage.Presentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Theme != nil {
		p.Theme = *upd.Theme
	}
	if upd.Content != nil {
		p.Content = cloneDeck(*upd.Content)
	}
	p.UpdatedAt = s.now()

	return clonePresentation(p), nil
}

// DeletePresentation removes a deck.
func (s *Store) DeletePresentation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.visible(ctx, id); err != nil {
		return err
	}
	delete(s.presentations, id)
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// visible returns the stored deck if the context owner may see it.
// Callers must hold s.mu.
func (s *Store) visible(ctx context.Context, id int64) (*storage.Presentation, error) {
	p, ok := s.presentations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if owner, scoped := storage.GetOwner(ctx); scoped && p.OwnerID != owner {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func clonePresentation(p *storage.Presentation) *storage.Presentation {
	cp := *p
	cp.Content = cloneDeck(p.Content)
	return &cp
}

func cloneDeck(d api.Presentation) api.Presentation {
	d.Slides = append([]api.SlideContent(nil), d.Slides...)
	return d
}
