package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/transport"
)

func uploadResponse(u *files.Upload) api.UploadResponse {
	return api.UploadResponse{
		Filename:    u.Filename,
		FileID:      u.FileID,
		FileSize:    u.FileSize,
		ContentType: u.ContentType,
		UploadTime:  u.UploadTime,
	}
}

// fileStore returns the upload store and the caller's user ID.
func (a *Adapter) fileStore(w http.ResponseWriter, r *http.Request) (*files.Store, int64, bool) {
	u, ok := currentUser(w, r)
	if !ok {
		return nil, 0, false
	}
	if a.deps.Files == nil {
		transport.WriteAPIError(w, api.NewUnavailableError("uploads are not configured"))
		return nil, 0, false
	}
	return a.deps.Files, u.ID, true
}

// handleUpload handles POST /api/upload. The "file" part is streamed to
// disk; the store aborts the write once the size limit is exceeded.
func (a *Adapter) handleUpload(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := a.fileStore(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, store.MaxSize()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		transport.WriteError(w, r, api.NewInvalidRequestError("file", "multipart form data required"))
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			transport.WriteError(w, r, multipartError(err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		upload, err := store.Save(userID, filepath.Base(part.FileName()), part)
		part.Close()
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				err = files.TooLargeError(store.MaxSize())
			}
			transport.WriteError(w, r, err)
			return
		}
		a.config.Logger.Info("file uploaded", "user_id", userID, "file_id", upload.FileID, "size", upload.FileSize)
		transport.WriteJSON(w, http.StatusCreated, uploadResponse(upload))
		return
	}
	transport.WriteAPIError(w, api.NewInvalidRequestError("file", "file is required"))
}

// handleListUploads handles GET /api/upload.
func (a *Adapter) handleListUploads(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := a.fileStore(w, r)
	if !ok {
		return
	}
	list, err := store.List(userID)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	out := make([]api.UploadResponse, 0, len(list))
	for _, u := range list {
		out = append(out, uploadResponse(u))
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

type messageResponse struct {
	Message string `json:"message"`
}

// handleDeleteUpload handles DELETE /api/upload/{file_id}.
func (a *Adapter) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := a.fileStore(w, r)
	if !ok {
		return
	}
	fileID := r.PathValue("file_id")
	if err := store.Delete(userID, fileID); err != nil {
		transport.WriteError(w, r, uploadError(fileID, err))
		return
	}
	transport.WriteJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

type uploadGenerateRequest struct {
	Options map[string]any `json:"options,omitempty"`
}

// handleGenerateFromUpload handles POST /api/upload/{file_id}/generate.
// The body is optional and may carry generation options.
func (a *Adapter) handleGenerateFromUpload(w http.ResponseWriter, r *http.Request) {
	store, userID, ok := a.fileStore(w, r)
	if !ok {
		return
	}
	fileID := r.PathValue("file_id")
	upload, err := store.Get(userID, fileID)
	if err != nil {
		transport.WriteError(w, r, uploadError(fileID, err))
		return
	}

	var req uploadGenerateRequest
	if err := a.decodeOptionalJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if _, err := a.deps.Service.CheckOptions(req.Options); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	a.submitGeneration(w, r, upload.Filename, messageFileGenerationStarted,
		func(ctx context.Context, progress engine.ProgressFunc) (*api.GenerationResponse, error) {
			f, u, err := store.Open(userID, fileID)
			if err != nil {
				return nil, fmt.Errorf("opening upload %s: %w", fileID, err)
			}
			defer f.Close()
			return a.deps.Service.GenerateFromFile(ctx, u.Filename, f, req.Options, progress)
		})
}

func uploadError(fileID string, err error) error {
	if errors.Is(err, files.ErrNotFound) {
		return api.NewNotFoundError(fmt.Sprintf("File with ID %s not found", fileID))
	}
	return err
}
