package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
	"github.com/harunnryd/yakusoku/internal/logger"
)

// Router selects a backend by name and falls back when the primary fails.
type Router struct {
	primary  string
	fallback string
	mapper   yakusokuErrors.ErrorMapper

	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRouter(primary, fallback string) *Router {
	r := &Router{
		primary:  primary,
		fallback: fallback,
		mapper:   yakusokuErrors.NewDefaultErrorMapper(),
		backends: make(map[string]Backend),
	}
	r.Register(Static{})
	return r
}

func (r *Router) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

func (r *Router) Name() string {
	return "router"
}

func (r *Router) Generate(ctx context.Context, p PromptContext) (string, error) {
	backend, err := r.resolve(r.primary)
	if err != nil {
		return "", err
	}

	text, genErr := backend.Generate(ctx, p)
	if genErr == nil {
		return text, nil
	}

	mapped := r.mapper.MapError(genErr)
	slog.Warn("Dialogue backend failed",
		"backend", backend.Name(),
		"conversation", logger.GetConversationID(ctx),
		"category", r.mapper.Category(mapped),
		"error", genErr,
	)

	if r.fallback == "" || r.fallback == r.primary {
		return "", mapped
	}

	fb, err := r.resolve(r.fallback)
	if err != nil {
		return "", mapped
	}

	text, fbErr := fb.Generate(ctx, p)
	if fbErr != nil {
		return "", r.mapper.MapError(fbErr)
	}

	slog.Info("Dialogue fallback backend served request", "backend", fb.Name())
	return text, nil
}

func (r *Router) resolve(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("dialogue backend %q not registered: %w", name, yakusokuErrors.ErrNotFound)
	}
	return b, nil
}
