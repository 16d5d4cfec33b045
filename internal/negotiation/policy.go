package negotiation

import (
	"fmt"
	"os"
	"time"

	"github.com/harunnryd/yakusoku/internal/config"

	"gopkg.in/yaml.v3"
)

// Bounds is the acceptable duration range for a category.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

func (b Bounds) Contains(d time.Duration) bool {
	return d >= b.Min && d <= b.Max
}

func (b Bounds) Clamp(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Policy holds per-category negotiation limits.
type Policy struct {
	MaxRounds  int
	Default    Bounds
	Categories map[string]Bounds
}

func DefaultPolicy() *Policy {
	return &Policy{
		MaxRounds:  config.DefaultNegotiationMaxRounds,
		Default:    Bounds{Min: time.Minute, Max: time.Hour},
		Categories: make(map[string]Bounds),
	}
}

func (p *Policy) BoundsFor(category string) Bounds {
	if b, ok := p.Categories[category]; ok {
		return b
	}
	return p.Default
}

type boundsSpec struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type policySpec struct {
	MaxRounds  int                   `yaml:"max_rounds"`
	Default    *boundsSpec           `yaml:"default"`
	Categories map[string]boundsSpec `yaml:"categories"`
}

// LoadPolicy reads a yaml policy file. Missing fields keep their defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec policySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p := DefaultPolicy()
	if spec.MaxRounds > 0 {
		p.MaxRounds = spec.MaxRounds
	}
	if spec.Default != nil {
		b, err := parseBounds(*spec.Default, p.Default)
		if err != nil {
			return nil, fmt.Errorf("policy default bounds: %w", err)
		}
		p.Default = b
	}
	for name, bs := range spec.Categories {
		b, err := parseBounds(bs, p.Default)
		if err != nil {
			return nil, fmt.Errorf("policy category %q: %w", name, err)
		}
		p.Categories[name] = b
	}
	return p, nil
}

func parseBounds(spec boundsSpec, fallback Bounds) (Bounds, error) {
	b := fallback
	if spec.Min != "" {
		d, err := config.DurationOrDefault(spec.Min, "")
		if err != nil {
			return Bounds{}, err
		}
		b.Min = d
	}
	if spec.Max != "" {
		d, err := config.DurationOrDefault(spec.Max, "")
		if err != nil {
			return Bounds{}, err
		}
		b.Max = d
	}
	if b.Min < 0 || b.Max < b.Min {
		return Bounds{}, fmt.Errorf("invalid bounds: min %v, max %v", b.Min, b.Max)
	}
	return b, nil
}
