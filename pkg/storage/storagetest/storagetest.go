// Package storagetest holds the behavioural test suite every storage
// backend must pass. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/storage"
)

// Factory returns a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) storage.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAndGetUser", func(t *testing.T) { testCreateAndGetUser(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore(t)) })
	t.Run("UserNotFound", func(t *testing.T) { testUserNotFound(t, newStore(t)) })
	t.Run("PresentationRoundTrip", func(t *testing.T) { testPresentationRoundTrip(t, newStore(t)) })
	t.Run("PresentationRequiresOwner", func(t *testing.T) { testPresentationRequiresOwner(t, newStore(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("ListOrderAndPaging", func(t *testing.T) { testListOrderAndPaging(t, newStore(t)) })
	t.Run("PartialUpdate", func(t *testing.T) { testPartialUpdate(t, newStore(t)) })
	t.Run("DeletePresentation", func(t *testing.T) { testDeletePresentation(t, newStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, newStore(t)) })
}

// SampleDeck returns a small deck used across the suite.
func SampleDeck(title string) api.Presentation {
	return api.Presentation{
		Title: title,
		Theme: "business",
		Slides: []api.SlideContent{
			{SlideNumber: 1, Title: "Intro", Content: "<h1>Intro</h1>", Notes: "Say hello"},
			{SlideNumber: 2, Title: "Numbers", Content: "<ul><li>Up 12%</li></ul>"},
		},
	}
}

func mustCreateUser(t *testing.T, s storage.Store, email string) *storage.User {
	t.Helper()
	u := &storage.User{Email: email, Name: "Test User", PasswordHash: "hash", IsActive: true}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustCreateDeck(t *testing.T, s storage.Store, ctx context.Context, title string) *storage.Presentation {
	t.Helper()
	p := &storage.Presentation{Title: title, Theme: "business", Content: SampleDeck(title)}
	if err := s.CreatePresentation(ctx, p); err != nil {
		t.Fatalf("CreatePresentation(%s): %v", title, err)
	}
	return p
}

func testCreateAndGetUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "ada@example.com")

	if u.ID == 0 {
		t.Fatal("CreateUser did not assign an ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser did not set timestamps")
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "ada@example.com" || got.Name != "Test User" || !got.IsActive {
		t.Errorf("GetUser = %+v", got)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail ID = %d, want %d", byEmail.ID, u.ID)
	}
}

func testDuplicateEmail(t *testing.T, s storage.Store) {
	mustCreateUser(t, s, "dup@example.com")

	err := s.CreateUser(context.Background(), &storage.User{Email: "dup@example.com", Name: "Other", PasswordHash: "x", IsActive: true})
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("CreateUser duplicate = %v, want ErrConflict", err)
	}
}

func testUpdateUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "first@example.com")
	other := mustCreateUser(t, s, "taken@example.com")

	u.Name = "Renamed"
	u.Email = "second@example.com"
	u.IsActive = false
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Renamed" || got.Email != "second@example.com" || got.IsActive {
		t.Errorf("after update = %+v", got)
	}
	if _, err := s.GetUserByEmail(ctx, "first@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old email lookup = %v, want ErrNotFound", err)
	}

	u.Email = other.Email
	if err := s.UpdateUser(ctx, u); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("UpdateUser to taken email = %v, want ErrConflict", err)
	}
}

func testUserNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetUser(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUser = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUserByEmail = %v, want ErrNotFound", err)
	}
	if err := s.UpdateUser(ctx, &storage.User{ID: 9999, Email: "x@example.com"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateUser = %v, want ErrNotFound", err)
	}
}

func testPresentationRoundTrip(t *testing.T, s storage.Store) {
	u := mustCreateUser(t, s, "owner@example.com")
	ctx := storage.SetOwner(context.Background(), u.ID)

	p := mustCreateDeck(t, s, ctx, "Roadmap")
	if p.ID == 0 || p.OwnerID != u.ID {
		t.Fatalf("CreatePresentation assigned ID=%d OwnerID=%d", p.ID, p.OwnerID)
	}

	got, err := s.GetPresentation(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPresentation: %v", err)
	}
	if got.Title != "Roadmap" || got.Theme != "business" {
		t.Errorf("GetPresentation = %+v", got)
	}
	if diff := cmp.Diff(SampleDeck("Roadmap"), got.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func testPresentationRequiresOwner(t *testing.T, s storage.Store) {
	err := s.CreatePresentation(context.Background(), &storage.Presentation{Title: "x", Theme: "y"})
	if !errors.Is(err, storage.ErrNoOwner) {
		t.Errorf("CreatePresentation without owner = %v, want ErrNoOwner", err)
	}
}

func testOwnerScoping(t *testing.T, s storage.Store) {
	alice := mustCreateUser(t, s, "alice@example.com")
	bob := mustCreateUser(t, s, "bob@example.com")
	aliceCtx := storage.SetOwner(context.Background(), alice.ID)
	bobCtx := storage.SetOwner(context.Background(), bob.ID)

	p := mustCreateDeck(t, s, aliceCtx, "Alice deck")

	if _, err := s.GetPresentation(bobCtx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign GetPresentation = %v, want ErrNotFound", err)
	}
	title := "stolen"
	if _, err := s.UpdatePresentation(bobCtx, p.ID, storage.PresentationUpdate{Title: &title}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign UpdatePresentation = %v, want ErrNotFound", err)
	}
	if err := s.DeletePresentation(bobCtx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign DeletePresentation = %v, want ErrNotFound", err)
	}

	list, err := s.ListPresentations(bobCtx, 0, 100)
	if err != nil {
		t.Fatalf("ListPresentations: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("bob sees %d decks, want 0", len(list))
	}

	// Unscoped reads see everything.
	if _, err := s.GetPresentation(context.Background(), p.ID); err != nil {
		t.Errorf("unscoped GetPresentation: %v", err)
	}
}

func testListOrderAndPaging(t *testing.T, s storage.Store) {
	u := mustCreateUser(t, s, "lister@example.com")
	ctx := storage.SetOwner(context.Background(), u.ID)

	for _, title := range []string{"one", "two", "three"} {
		mustCreateDeck(t, s, ctx, title)
	}

	all, err := s.ListPresentations(ctx, 0, 100)
	if err != nil {
		t.Fatalf("ListPresentations: %v", err)
	}
	var titles []string
	for _, p := range all {
		titles = append(titles, p.Title)
	}
	if diff := cmp.Diff([]string{"three", "two", "one"}, titles); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	page, err := s.ListPresentations(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListPresentations page: %v", err)
	}
	if len(page) != 1 || page[0].Title != "two" {
		t.Errorf("page = %v, want [two]", page)
	}
}

func testPartialUpdate(t *testing.T, s storage.Store) {
	u := mustCreateUser(t, s, "editor@example.com")
	ctx := storage.SetOwner(context.Background(), u.ID)
	p := mustCreateDeck(t, s, ctx, "Draft")

	theme := "dark"
	got, err := s.UpdatePresentation(ctx, p.ID, storage.PresentationUpdate{Theme: &theme})
	if err != nil {
		t.Fatalf("UpdatePresentation: %v", err)
	}
	if got.Title != "Draft" || got.Theme != "dark" {
		t.Errorf("after theme update = %q/%q", got.Title, got.Theme)
	}
	if got.UpdatedAt.Before(p.UpdatedAt) {
		t.Error("UpdatedAt moved backwards")
	}

	content := SampleDeck("Final")
	content.Slides = content.Slides[:1]
	got, err = s.UpdatePresentation(ctx, p.ID, storage.PresentationUpdate{Content: &content})
	if err != nil {
		t.Fatalf("UpdatePresentation content: %v", err)
	}
	if len(got.Content.Slides) != 1 || got.Content.Title != "Final" {
		t.Errorf("content not replaced: %+v", got.Content)
	}
	if got.Theme != "dark" {
		t.Errorf("Theme = %q, want dark", got.Theme)
	}
}

func testDeletePresentation(t *testing.T, s storage.Store) {
	u := mustCreateUser(t, s, "deleter@example.com")
	ctx := storage.SetOwner(context.Background(), u.ID)
	p := mustCreateDeck(t, s, ctx, "Temp")

	if err := s.DeletePresentation(ctx, p.ID); err != nil {
		t.Fatalf("DeletePresentation: %v", err)
	}
	if _, err := s.GetPresentation(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPresentation after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeletePresentation(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeletePresentation = %v, want ErrNotFound", err)
	}
}

func testDeleteUserCascades(t *testing.T, s storage.Store) {
	u := mustCreateUser(t, s, "leaver@example.com")
	ctx := storage.SetOwner(context.Background(), u.ID)
	p := mustCreateDeck(t, s, ctx, "Orphan")

	if err := s.DeleteUser(context.Background(), u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUser(context.Background(), u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUser after delete = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPresentation(context.Background(), p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("presentation survived owner deletion: %v", err)
	}
	if err := s.DeleteUser(context.Background(), u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteUser = %v, want ErrNotFound", err)
	}
}
