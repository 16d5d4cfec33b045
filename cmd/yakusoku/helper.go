package main

import (
	"fmt"
	"time"

	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/dialogue"
	"github.com/harunnryd/yakusoku/internal/dialogue/providers/anthropic"
	"github.com/harunnryd/yakusoku/internal/dialogue/providers/gemini"
	"github.com/harunnryd/yakusoku/internal/dialogue/providers/openai"
	"github.com/harunnryd/yakusoku/internal/memory"
	"github.com/harunnryd/yakusoku/internal/negotiation"
	"github.com/harunnryd/yakusoku/internal/parser"

	chromem "github.com/philippgille/chromem-go"
)

// buildDialogueRouter wires the configured provider behind the router.
// The static backend is always registered as the last-resort fallback.
func buildDialogueRouter(cfg *config.Config) (*dialogue.Router, error) {
	router := dialogue.NewRouter(cfg.Dialogue.Provider, cfg.Dialogue.Fallback)

	switch cfg.Dialogue.Provider {
	case "static":
	case "openai":
		router.Register(openai.New(cfg.Dialogue.APIKey, cfg.Dialogue.BaseURL, cfg.Dialogue.Model))
	case "anthropic":
		router.Register(anthropic.New(cfg.Dialogue.APIKey, cfg.Dialogue.Model))
	case "gemini":
		p, err := gemini.New(cfg.Dialogue.APIKey, cfg.Dialogue.Model)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		router.Register(p)
	default:
		return nil, fmt.Errorf("unknown dialogue provider %q", cfg.Dialogue.Provider)
	}

	return router, nil
}

func dialogueTimeouts(cfg *config.Config) (request, backoff time.Duration, err error) {
	request, err = config.DurationOrDefault(cfg.Dialogue.RequestTimeout, config.DefaultDialogueRequestTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("parse dialogue request timeout: %w", err)
	}
	backoff, err = config.DurationOrDefault(cfg.Dialogue.RetryBackoff, config.DefaultDialogueRetryBackoff)
	if err != nil {
		return 0, 0, fmt.Errorf("parse dialogue retry backoff: %w", err)
	}
	return request, backoff, nil
}

func buildPolicy(cfg *config.Config) (*negotiation.Policy, error) {
	policy := negotiation.DefaultPolicy()
	if cfg.Negotiation.PolicyPath != "" {
		loaded, err := negotiation.LoadPolicy(cfg.Negotiation.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load negotiation policy: %w", err)
		}
		policy = loaded
	}
	if cfg.Negotiation.MaxRounds > 0 {
		policy.MaxRounds = cfg.Negotiation.MaxRounds
	}
	return policy, nil
}

func buildParser(cfg *config.Config) (*parser.Parser, error) {
	short, err := config.DurationOrDefault(cfg.Negotiation.ShortDefault, config.DefaultNegotiationShortDefault)
	if err != nil {
		return nil, fmt.Errorf("parse negotiation short default: %w", err)
	}
	minimal, err := config.DurationOrDefault(cfg.Negotiation.MinimalDefault, config.DefaultNegotiationMinimalDefault)
	if err != nil {
		return nil, fmt.Errorf("parse negotiation minimal default: %w", err)
	}
	return parser.New(parser.Defaults{Short: short, Minimal: minimal}), nil
}

// buildMemory opens the negotiation history store when enabled. It needs
// an OpenAI key for embeddings and degrades to nil without one.
func buildMemory(cfg *config.Config) (*memory.Store, error) {
	if !cfg.Memory.Enabled {
		return nil, nil
	}

	apiKey := cfg.Dialogue.APIKey
	if cfg.Dialogue.Provider != "openai" {
		return nil, fmt.Errorf("negotiation memory requires the openai provider for embeddings")
	}

	embed := chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(cfg.Memory.EmbeddingModel))
	return memory.New(cfg.Memory.Path, embed)
}
