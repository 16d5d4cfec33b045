package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbed maps text length onto a tiny deterministic vector so tests
// never touch the network.
func fakeEmbed(ctx context.Context, text string) ([]float32, error) {
	v := float32(len(text) % 7)
	return []float32{v, 1, float32(len(text) % 3)}, nil
}

func TestRecordAndRecall(t *testing.T) {
	s, err := New(t.TempDir(), fakeEmbed)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{
		Category:       "video",
		SubjectKey:     "youtube.com",
		AgreedDuration: 20 * time.Minute,
		Outcome:        "agreed",
		At:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	got, err := s.Recall(ctx, "youtube video time", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "youtube.com")
	assert.Contains(t, got[0], "agreed")
}

func TestRecall_EmptyStore(t *testing.T) {
	s, err := New(t.TempDir(), fakeEmbed)
	require.NoError(t, err)

	got, err := s.Recall(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
