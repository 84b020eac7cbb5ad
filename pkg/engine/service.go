package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/cache"
	"github.com/rhuss/slidewright/pkg/document"
)

// CacheNamespace holds generated presentations in the cache.
const CacheNamespace = "presentations"

// SourceText is the document source of requests carrying raw text.
const SourceText = "text"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Validation api.ValidationConfig

	// CacheTTL is how long generated decks stay cached. Zero means one hour.
	CacheTTL time.Duration

	// MaxFileSize bounds documents read by GenerateFromFile.
	MaxFileSize int64
}

func (c *ServiceConfig) defaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = document.DefaultMaxSize
	}
	if c.Validation == (api.ValidationConfig{}) {
		c.Validation = api.DefaultValidationConfig()
	}
}

// Service generates presentations from text or files, serving repeated
// requests from the cache.
type Service struct {
	engine *Engine
	cache  *cache.Cache
	cfg    ServiceConfig
	flight singleflight.Group
}

// NewService creates a Service. The cache can be nil to disable caching.
func NewService(e *Engine, c *cache.Cache, cfg ServiceConfig) *Service {
	cfg.defaults()
	return &Service{engine: e, cache: c, cfg: cfg}
}

// Ready reports whether the underlying provider can be called.
func (s *Service) Ready() bool { return s.engine.Ready() }

// Engine returns the wrapped engine.
func (s *Service) Engine() *Engine { return s.engine }

// cachedDeck is the value stored in the cache.
type cachedDeck struct {
	Presentation *api.Presentation `json:"presentation"`
	Model        string            `json:"model"`
}

type flightResult struct {
	// ranBy is the generation ID of the caller that did the work.
	ranBy string
	pres  *api.Presentation
	usage api.Usage
	model string
}

// CheckText runs the checks GenerateFromText performs before any work
// starts, so that asynchronous callers can reject a request up front.
func (s *Service) CheckText(req *api.GenerationRequest) (api.GenerationOptions, error) {
	if !s.Ready() {
		return api.GenerationOptions{}, api.NewUnavailableError("LLM API key not configured")
	}
	if apiErr := api.ValidateGenerationRequest(req, s.cfg.Validation); apiErr != nil {
		return api.GenerationOptions{}, apiErr
	}
	opts, err := req.ParseOptions()
	if err != nil {
		return opts, api.NewInvalidRequestError("options", err.Error())
	}
	return opts, nil
}

// CheckOptions is the CheckText counterpart for file requests.
func (s *Service) CheckOptions(options map[string]any) (api.GenerationOptions, error) {
	if !s.Ready() {
		return api.GenerationOptions{}, api.NewUnavailableError("LLM API key not configured")
	}
	opts, err := api.ParseOptions(options)
	if err != nil {
		return opts, api.NewInvalidRequestError("options", err.Error())
	}
	if apiErr := api.ValidateOptions(opts, s.cfg.Validation); apiErr != nil {
		return opts, apiErr
	}
	return opts, nil
}

// MaxFileSize returns the document size limit of GenerateFromFile.
func (s *Service) MaxFileSize() int64 { return s.cfg.MaxFileSize }

// GenerateFromText validates req and generates a presentation from its
// document text.
func (s *Service) GenerateFromText(ctx context.Context, req *api.GenerationRequest, progress ProgressFunc) (*api.GenerationResponse, error) {
	opts, err := s.CheckText(req)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, req.DocumentText, SourceText, opts, progress)
}

// GenerateFromFile extracts the text of the named file and generates a
// presentation from it. The text size limit of GenerateFromText does not
// apply; MaxFileSize bounds the file instead.
func (s *Service) GenerateFromFile(ctx context.Context, name string, r io.Reader, options map[string]any, progress ProgressFunc) (*api.GenerationResponse, error) {
	opts, err := s.CheckOptions(options)
	if err != nil {
		return nil, err
	}

	progress.report(0.05, "Reading file")
	doc, err := document.Process(name, r, s.cfg.MaxFileSize)
	if err != nil {
		return nil, documentError(err)
	}
	return s.generate(ctx, doc.Text, name, opts, progress)
}

func documentError(err error) error {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return api.NewUnsupportedMediaTypeError(err.Error())
	case errors.Is(err, document.ErrTooLarge):
		return api.NewTooLargeError(err.Error())
	case errors.Is(err, document.ErrEmptyDocument):
		return api.NewInvalidRequestError("file", err.Error())
	}
	return api.NewInvalidRequestError("file", fmt.Sprintf("failed to read document: %v", err))
}

func (s *Service) generate(ctx context.Context, text, source string, opts api.GenerationOptions, progress ProgressFunc) (*api.GenerationResponse, error) {
	start := time.Now()
	id := generationID(ctx)
	if id == "" {
		id = uuid.NewString()
	}

	useCache := s.cache != nil && opts.CacheEnabled()
	if !useCache {
		res, err := s.run(ctx, id, text, source, opts, progress)
		if err != nil {
			return nil, err
		}
		return s.respond(id, start, res, false, progress), nil
	}

	key, err := cacheKey(text, opts)
	if err != nil {
		return nil, api.NewServerError(err.Error())
	}

	var hit cachedDeck
	if s.cache.GetJSON(CacheNamespace, key, &hit) && hit.Presentation != nil {
		slog.Debug("serving cached presentation", "generation_id", id, "key", key)
		return s.respond(id, start, &flightResult{pres: hit.Presentation, model: hit.Model}, true, progress), nil
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		res, err := s.run(ctx, id, text, source, opts, progress)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetJSON(CacheNamespace, key, cachedDeck{Presentation: res.pres, Model: res.model}, s.cfg.CacheTTL); err != nil {
			slog.Warn("failed to cache presentation", "generation_id", id, "error", err)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			// The leader was cancelled but this caller was not: do the work here.
			if r.Shared && isContextErr(r.Err) && ctx.Err() == nil {
				res, err := s.run(ctx, id, text, source, opts, progress)
				if err != nil {
					return nil, err
				}
				return s.respond(id, start, res, false, progress), nil
			}
			return nil, r.Err
		}
		res := r.Val.(*flightResult)
		if res.ranBy != id {
			// Someone else paid for the tokens.
			res = &flightResult{ranBy: res.ranBy, pres: clonePresentation(res.pres), model: res.model}
		}
		return s.respond(id, start, res, false, progress), nil
	}
}

func (s *Service) run(ctx context.Context, id, text, source string, opts api.GenerationOptions, progress ProgressFunc) (*flightResult, error) {
	gctx := NewGenerationContext(id, source)
	pres, err := s.engine.Generate(ctx, gctx, text, opts, progress)
	if err != nil {
		return nil, err
	}
	return &flightResult{ranBy: id, pres: pres, usage: gctx.Usage(), model: s.engine.Model(opts)}, nil
}

func (s *Service) respond(id string, start time.Time, res *flightResult, cached bool, progress ProgressFunc) *api.GenerationResponse {
	progress.report(1.0, "Presentation generation complete")
	return &api.GenerationResponse{
		Presentation: res.pres,
		Metadata: api.GenerationMetadata{
			GenerationID:          id,
			GenerationTimeSeconds: time.Since(start).Seconds(),
			SlideCount:            len(res.pres.Slides),
			Cached:                cached,
			Model:                 res.model,
			TokenUsage:            res.usage,
		},
	}
}

// cacheKey derives the cache key from the text and the options that affect
// the output. use_cache itself is not part of the key.
func cacheKey(text string, opts api.GenerationOptions) (string, error) {
	opts.UseCache = nil
	canonical, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	return cache.Key(text, string(canonical)), nil
}

func clonePresentation(p *api.Presentation) *api.Presentation {
	c := *p
	c.Slides = slices.Clone(p.Slides)
	return &c
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
