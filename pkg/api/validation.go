package api

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxDocumentSize int
	MaxSlides       int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxDocumentSize: 1024 * 1024, // 1MB
		MaxSlides:       50,
	}
}

// Paging limits for list endpoints.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

const (
	minPasswordLength = 8
	minNameLength     = 2
)

// ValidateGenerationRequest checks a GenerationRequest and its options.
// It returns an *APIError describing the first failure, or nil.
func ValidateGenerationRequest(req *GenerationRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.DocumentText) == "" {
		return NewInvalidRequestError("document_text", "document_text is required")
	}

	if cfg.MaxDocumentSize > 0 && len(req.DocumentText) > cfg.MaxDocumentSize {
		return NewInvalidRequestError("document_text",
			fmt.Sprintf("document_text exceeds maximum of %d bytes", cfg.MaxDocumentSize))
	}

	opts, err := req.ParseOptions()
	if err != nil {
		return NewInvalidRequestError("options", err.Error())
	}
	return ValidateOptions(opts, cfg)
}

// ValidateOptions checks decoded generation options.
func ValidateOptions(opts GenerationOptions, cfg ValidationConfig) *APIError {
	if opts.MaxSlides < 0 {
		return NewInvalidRequestError("options.max_slides", "max_slides must not be negative")
	}
	if cfg.MaxSlides > 0 && opts.MaxSlides > cfg.MaxSlides {
		return NewInvalidRequestError("options.max_slides",
			fmt.Sprintf("max_slides exceeds maximum of %d", cfg.MaxSlides))
	}
	return nil
}

// ValidateRegister checks a registration request.
func ValidateRegister(req *RegisterRequest) *APIError {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	return validateName(req.Name)
}

// ValidateUserUpdate checks the fields present in a profile update.
func ValidateUserUpdate(req *UserUpdateRequest) *APIError {
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return err
		}
	}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return err
		}
	}
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePresentationCreate checks a create request.
func ValidatePresentationCreate(req *PresentationCreateRequest) *APIError {
	if req.Title == "" {
		return NewInvalidRequestError("title", "title must not be empty")
	}
	if req.Theme == "" {
		return NewInvalidRequestError("theme", "theme must not be empty")
	}
	if req.Content == nil {
		return NewInvalidRequestError("content", "content is required")
	}
	return ValidatePresentation(req.Content)
}

// ValidatePresentationUpdate checks the fields present in an update request.
func ValidatePresentationUpdate(req *PresentationUpdateRequest) *APIError {
	if req.Title != nil && *req.Title == "" {
		return NewInvalidRequestError("title", "title must not be empty")
	}
	if req.Theme != nil && *req.Theme == "" {
		return NewInvalidRequestError("theme", "theme must not be empty")
	}
	if req.Content != nil {
		return ValidatePresentation(req.Content)
	}
	return nil
}

// ValidatePresentation checks the structure of a deck.
func ValidatePresentation(p *Presentation) *APIError {
	if p.Title == "" {
		return NewInvalidRequestError("content.title", "title is required")
	}
	if p.Theme == "" {
		return NewInvalidRequestError("content.theme", "theme is required")
	}
	for i, s := range p.Slides {
		if s.Title == "" {
			return NewInvalidRequestError(fmt.Sprintf("content.slides[%d].title", i), "slide title is required")
		}
	}
	return nil
}

// ValidatePaging checks skip/limit query values. A zero limit means the default.
func ValidatePaging(skip, limit int) *APIError {
	if skip < 0 {
		return NewInvalidRequestError("skip", "skip must not be negative")
	}
	if limit < 0 || limit > MaxPageLimit {
		return NewInvalidRequestError("limit",
			fmt.Sprintf("limit must be between 1 and %d", MaxPageLimit))
	}
	return nil
}

func validateEmail(email string) *APIError {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return NewInvalidRequestError("email", "value is not a valid email address")
	}
	return nil
}

func validatePassword(pw string) *APIError {
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return NewInvalidRequestError("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func validateName(name string) *APIError {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLength {
		return NewInvalidRequestError("name",
			fmt.Sprintf("name must be at least %d characters", minNameLength))
	}
	return nil
}
