package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// SlideStructure is the planning agent's description of one slide.
type SlideStructure struct {
	SlideNumber   int      `json:"slide_number"`
	Title         string   `json:"title"`
	ContentTokens []string `json:"content_tokens"`
	FormatTokens  []string `json:"format_tokens"`
	DesignTokens  []string `json:"design_tokens"`
}

// PresentationPlan is the structured output of the planning stage.
type PresentationPlan struct {
	Title  string           `json:"title"`
	Theme  string           `json:"theme"`
	Slides []SlideStructure `json:"slides"`
}

// SlideContent is the finished content of one slide. Content holds HTML.
type SlideContent struct {
	SlideNumber int    `json:"slide_number"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Notes       string `json:"notes"`
}

// Presentation is a complete deck.
type Presentation struct {
	Title  string         `json:"title"`
	Theme  string         `json:"theme"`
	Slides []SlideContent `json:"slides"`
}

// GenerationRequest asks for a deck built from raw document text.
// Options is kept as a free-form object; known keys are decoded by
// [GenerationRequest.ParseOptions].
type GenerationRequest struct {
	DocumentText string         `json:"document_text"`
	Options      map[string]any `json:"options,omitempty"`
}

// GenerationOptions are the option keys the generator understands.
type GenerationOptions struct {
	Theme     string `json:"theme,omitempty"`
	Audience  string `json:"audience,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxSlides int    `json:"max_slides,omitempty"`

	// UseCache defaults to true when absent.
	UseCache *bool `json:"use_cache,omitempty"`
}

// CacheEnabled reports whether cached results may be served.
func (o GenerationOptions) CacheEnabled() bool {
	return o.UseCache == nil || *o.UseCache
}

// ParseOptions decodes the known option keys. Unknown keys are ignored.
func (r *GenerationRequest) ParseOptions() (GenerationOptions, error) {
	return ParseOptions(r.Options)
}

// ParseOptions decodes a free-form options object into GenerationOptions.
func ParseOptions(raw map[string]any) (GenerationOptions, error) {
	var opts GenerationOptions
	if len(raw) == 0 {
		return opts, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return opts, fmt.Errorf("encoding options: %w", err)
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("decoding options: %w", err)
	}
	return opts, nil
}

// Usage reports token consumption across all LLM calls of a generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.PromptTokens += u2.PromptTokens
	u.CompletionTokens += u2.CompletionTokens
	u.TotalTokens += u2.TotalTokens
}

// GenerationMetadata describes how a deck was produced.
type GenerationMetadata struct {
	GenerationID          string  `json:"generation_id"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	SlideCount            int     `json:"slide_count"`
	Cached                bool    `json:"cached"`
	Model                 string  `json:"model,omitempty"`
	TokenUsage            Usage   `json:"token_usage"`
}

// GenerationResponse is returned by synchronous generation.
type GenerationResponse struct {
	Presentation *Presentation     `json:"presentation"`
	Metadata     GenerationMetadata `json:"metadata"`
}

// AsyncGenerationResponse acknowledges a queued generation.
type AsyncGenerationResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// TaskStatusResponse is the client view of a generation task.
type TaskStatusResponse struct {
	TaskID      string     `json:"task_id"`
	Status      TaskStatus `json:"status"`
	Progress    float64    `json:"progress"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RegisterRequest creates a user account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest exchanges credentials for an access token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// UserUpdateRequest changes profile fields. Nil fields are left untouched.
type UserUpdateRequest struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// PresentationCreateRequest stores a deck for the current user.
type PresentationCreateRequest struct {
	Title   string        `json:"title"`
	Theme   string        `json:"theme"`
	Content *Presentation `json:"content"`
}

// PresentationUpdateRequest changes a stored deck. Nil fields are left untouched.
type PresentationUpdateRequest struct {
	Title   *string       `json:"title,omitempty"`
	Theme   *string       `json:"theme,omitempty"`
	Content *Presentation `json:"content,omitempty"`
}

// PresentationResponse is a stored deck with its content.
type PresentationResponse struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Theme     string        `json:"theme"`
	Content   *Presentation `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PresentationListItem is the summary returned when listing decks.
type PresentationListItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UploadResponse describes a stored upload.
type UploadResponse struct {
	Filename    string    `json:"filename"`
	FileID      string    `json:"file_id"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadTime  time.Time `json:"upload_time"`
}
