package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/storage/files"
	"github.com/rhuss/slidewright/pkg/tasks"
	"github.com/rhuss/slidewright/pkg/transport"
)

const (
	messageGenerationStarted     = "Presentation generation started"
	messageFileGenerationStarted = "File-based presentation generation started"
)

// multipartOverhead is allowed on top of the file limit for part headers
// and the options field.
const multipartOverhead = 1 << 20

// generateFunc runs one generation, reporting progress as it goes.
type generateFunc func(ctx context.Context, progress engine.ProgressFunc) (*api.GenerationResponse, error)

// handleGenerate handles POST /api/generate.
func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerationRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	resp, err := a.deps.Service.GenerateFromText(r.Context(), &req, nil)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleGenerateAsync handles POST /api/generate-async.
func (a *Adapter) handleGenerateAsync(w http.ResponseWriter, r *http.Request) {
	var req api.GenerationRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if _, err := a.deps.Service.CheckText(&req); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	a.submitGeneration(w, r, engine.SourceText, messageGenerationStarted,
		func(ctx context.Context, progress engine.ProgressFunc) (*api.GenerationResponse, error) {
			return a.deps.Service.GenerateFromText(ctx, &req, progress)
		})
}

// handleGenerateFromFileAsync handles POST /api/generate-from-file-async.
// The form carries the document in "file" and optional JSON in "options".
func (a *Adapter) handleGenerateFromFileAsync(w http.ResponseWriter, r *http.Request) {
	limit := a.deps.Service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		transport.WriteError(w, r, api.NewInvalidRequestError("file", "multipart form data required"))
		return
	}

	var (
		name    string
		data    []byte
		options map[string]any
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			transport.WriteError(w, r, multipartError(err))
			return
		}

		switch part.FormName() {
		case "file":
			name = part.FileName()
			if _, err := files.CheckExtension(name); err != nil {
				transport.WriteError(w, r, err)
				return
			}
			data, err = io.ReadAll(io.LimitReader(part, limit+1))
			if err != nil {
				transport.WriteError(w, r, multipartError(err))
				return
			}
			if int64(len(data)) > limit {
				transport.WriteError(w, r, files.TooLargeError(limit))
				return
			}
		case "options":
			options, err = readOptions(part)
			if err != nil {
				transport.WriteError(w, r, err)
				return
			}
		}
		part.Close()
	}

	if name == "" {
		transport.WriteError(w, r, api.NewInvalidRequestError("file", "file is required"))
		return
	}
	if _, err := a.deps.Service.CheckOptions(options); err != nil {
		transport.WriteError(w, r, err)
		return
	}

	a.submitGeneration(w, r, name, messageFileGenerationStarted,
		func(ctx context.Context, progress engine.ProgressFunc) (*api.GenerationResponse, error) {
			return a.deps.Service.GenerateFromFile(ctx, name, bytes.NewReader(data), options, progress)
		})
}

func readOptions(part *multipart.Part) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(part, multipartOverhead))
	if err != nil {
		return nil, multipartError(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var options map[string]any
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, api.NewInvalidRequestError("options", "options must be a JSON object")
	}
	return options, nil
}

func multipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return api.NewTooLargeError("request body too large")
	}
	return api.NewInvalidRequestError("file", "malformed multipart body: "+err.Error())
}

// submitGeneration queues fn on the task manager and answers 202 with the
// task ID. The task ID doubles as the generation ID.
func (a *Adapter) submitGeneration(w http.ResponseWriter, r *http.Request, source, message string, fn generateFunc) {
	requestID := transport.RequestIDFromContext(r.Context())
	id, err := a.deps.Tasks.Submit(func(ctx context.Context, t *tasks.Task) (any, error) {
		ctx = engine.WithGenerationID(ctx, t.ID())
		return fn(ctx, t.Update)
	}, tasks.Options{Metadata: map[string]any{
		"source":     source,
		"request_id": requestID,
	}})
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	slog.Info("generation task submitted", "task_id", id, "source", source, "request_id", requestID)
	transport.WriteJSON(w, http.StatusAccepted, api.AsyncGenerationResponse{TaskID: id, Message: message})
}

// handleTaskStatus handles GET /api/generation/{id}/status.
func (a *Adapter) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	res, ok := a.deps.Tasks.Get(r.PathValue("id"))
	if !ok {
		transport.WriteAPIError(w, taskNotFound(r.PathValue("id")))
		return
	}
	transport.WriteJSON(w, http.StatusOK, res.StatusResponse())
}

// handleTaskResult handles GET /api/generation/{id}/result.
func (a *Adapter) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := a.deps.Tasks.Get(id)
	if !ok {
		transport.WriteAPIError(w, taskNotFound(id))
		return
	}
	if res.Status != api.TaskStatusCompleted {
		transport.WriteAPIError(w, api.NewInvalidRequestError("task_id",
			fmt.Sprintf("Task %s is not completed (status: %s)", id, res.Status)))
		return
	}

	gen, ok := res.Result.(*api.GenerationResponse)
	if !ok || gen == nil || gen.Presentation == nil {
		transport.WriteAPIError(w, api.NewServerError(fmt.Sprintf("No result available for task %s", id)))
		return
	}
	transport.WriteJSON(w, http.StatusOK, gen.Presentation)
}

type cancelResponse struct {
	TaskID string         `json:"task_id"`
	Status api.TaskStatus `json:"status"`
}

// handleCancelTask handles DELETE /api/generation/{id}.
func (a *Adapter) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := a.deps.Tasks.Cancel(id)
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		transport.WriteAPIError(w, taskNotFound(id))
		return
	case errors.Is(err, tasks.ErrFinished):
		transport.WriteAPIError(w, api.NewConflictError(
			fmt.Sprintf("Task %s already finished (status: %s)", id, res.Status)))
		return
	case err != nil:
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, cancelResponse{TaskID: id, Status: res.Status})
}

// handleListTasks handles GET /api/generations.
func (a *Adapter) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all := a.deps.Tasks.All()
	out := make([]api.TaskStatusResponse, 0, len(all))
	for _, res := range all {
		out = append(out, res.StatusResponse())
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

func taskNotFound(id string) *api.APIError {
	return api.NewNotFoundError(fmt.Sprintf("Task %s not found", strings.TrimSpace(id)))
}
