package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{ name string }

func (f failingBackend) Name() string { return f.name }

func (f failingBackend) Generate(ctx context.Context, p PromptContext) (string, error) {
	return "", errors.New("connection refused")
}

func TestStatic_Kinds(t *testing.T) {
	b := Static{}
	ctx := context.Background()

	text, err := b.Generate(ctx, PromptContext{Kind: KindOpening, SubjectKey: "youtube.com", Elapsed: 25 * time.Minute})
	require.NoError(t, err)
	assert.Contains(t, text, "youtube.com")
	assert.Contains(t, text, "25 minutes")

	text, err = b.Generate(ctx, PromptContext{Kind: KindCounter, Offer: 30 * time.Minute})
	require.NoError(t, err)
	assert.Contains(t, text, "30 minutes")

	text, err = b.Generate(ctx, PromptContext{Kind: KindClarify})
	require.NoError(t, err)
	assert.Contains(t, text, "minutes")
}

func TestStatic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Static{}.Generate(ctx, PromptContext{Kind: KindOpening})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter_FallsBackToStatic(t *testing.T) {
	r := NewRouter("flaky", "static")
	r.Register(failingBackend{name: "flaky"})

	text, err := r.Generate(context.Background(), PromptContext{Kind: KindClarify})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestRouter_NoFallbackSurfacesMappedError(t *testing.T) {
	r := NewRouter("flaky", "")
	r.Register(failingBackend{name: "flaky"})

	_, err := r.Generate(context.Background(), PromptContext{Kind: KindOpening})
	assert.ErrorIs(t, err, yakusokuErrors.ErrTransient)
}

func TestRouter_UnknownBackend(t *testing.T) {
	r := NewRouter("missing", "")

	_, err := r.Generate(context.Background(), PromptContext{Kind: KindOpening})
	assert.ErrorIs(t, err, yakusokuErrors.ErrNotFound)
}

func TestBuildMessages_Counter(t *testing.T) {
	system, user := BuildMessages(PromptContext{
		Kind:     KindCounter,
		Category: "video",
		Offer:    30 * time.Minute,
		Round:    2,
		Recent:   []string{"yesterday: agreed 20 minutes, completed"},
	})

	assert.NotEmpty(t, system)
	assert.Contains(t, user, "30 minutes")
	assert.Contains(t, user, "round 2")
	assert.Contains(t, user, "yesterday: agreed 20 minutes, completed")
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "a moment"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}
