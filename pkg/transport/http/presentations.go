package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/render"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/transport"
)

// defaultPageSize is the list limit when the client sends none.
const defaultPageSize = 100

// presentationStore returns the store and the current user, or writes an
// error. Presentation routes are always scoped to the caller.
func (a *Adapter) presentationStore(w http.ResponseWriter, r *http.Request) (storage.PresentationStore, bool) {
	if _, ok := currentUser(w, r); !ok {
		return nil, false
	}
	if a.deps.Store == nil {
		transport.WriteAPIError(w, api.NewUnavailableError("presentation storage is not configured"))
		return nil, false
	}
	return a.deps.Store, true
}

// handleCreatePresentation handles POST /api/presentations.
func (a *Adapter) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	store, ok := a.presentationStore(w, r)
	if !ok {
		return
	}

	var req api.PresentationCreateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if apiErr := api.ValidatePresentationCreate(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	p := &storage.Presentation{Title: req.Title, Theme: req.Theme, Content: *req.Content}
	if err := store.CreatePresentation(r.Context(), p); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, p.Response())
}

// handleListPresentations handles GET /api/presentations?skip=&limit=.
func (a *Adapter) handleListPresentations(w http.ResponseWriter, r *http.Request) {
	store, ok := a.presentationStore(w, r)
	if !ok {
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if apiErr := api.ValidatePaging(skip, limit); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := store.ListPresentations(r.Context(), skip, limit)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	out := make([]api.PresentationListItem, 0, len(list))
	for _, p := range list {
		out = append(out, p.ListItem())
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

// loadPresentation fetches the presentation named by the {id} path value.
func (a *Adapter) loadPresentation(w http.ResponseWriter, r *http.Request) (*storage.Presentation, bool) {
	store, ok := a.presentationStore(w, r)
	if !ok {
		return nil, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		transport.WriteError(w, r, err)
		return nil, false
	}
	p, err := store.GetPresentation(r.Context(), id)
	if err != nil {
		transport.WriteError(w, r, presentationError(id, err))
		return nil, false
	}
	return p, true
}

// handleGetPresentation handles GET /api/presentations/{id}.
func (a *Adapter) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPresentation(w, r)
	if !ok {
		return
	}
	transport.WriteJSON(w, http.StatusOK, p.Response())
}

// handleUpdatePresentation handles PUT /api/presentations/{id}. Absent
// fields keep their stored values.
func (a *Adapter) handleUpdatePresentation(w http.ResponseWriter, r *http.Request) {
	store, ok := a.presentationStore(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	var req api.PresentationUpdateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if apiErr := api.ValidatePresentationUpdate(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	p, err := store.UpdatePresentation(r.Context(), id, storage.PresentationUpdate{
		Title:   req.Title,
		Theme:   req.Theme,
		Content: req.Content,
	})
	if err != nil {
		transport.WriteError(w, r, presentationError(id, err))
		return
	}
	transport.WriteJSON(w, http.StatusOK, p.Response())
}

// handleDeletePresentation handles DELETE /api/presentations/{id}.
func (a *Adapter) handleDeletePresentation(w http.ResponseWriter, r *http.Request) {
	store, ok := a.presentationStore(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if err := store.DeletePresentation(r.Context(), id); err != nil {
		transport.WriteError(w, r, presentationError(id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportPresentation handles GET /api/presentations/{id}/export and
// returns the deck as a standalone HTML document.
func (a *Adapter) handleExportPresentation(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPresentation(w, r)
	if !ok {
		return
	}

	deck := p.Content
	if deck.Title == "" {
		deck.Title = p.Title
	}
	if deck.Theme == "" {
		deck.Theme = p.Theme
	}

	var buf bytes.Buffer
	if err := render.Deck(&buf, &deck); err != nil {
		transport.WriteError(w, r, fmt.Errorf("rendering presentation %d: %w", p.ID, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.html"`, exportName(p.Title)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func presentationError(id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return api.NewNotFoundError(fmt.Sprintf("Presentation with ID %d not found", id))
	}
	return err
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// exportName turns a title into a safe file name.
func exportName(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return "presentation"
	}
	return s
}
