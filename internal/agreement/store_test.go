package agreement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "agreements"))
	require.NoError(t, err)
	return s
}

func TestNew_Fields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := New("youtube.com", "video", 5*time.Minute, "conv-1", now)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now.Add(5*time.Minute), a.ExpiresAt)
	assert.Nil(t, a.ViolatedAt)
	assert.Equal(t, 5*time.Minute, a.Remaining(now))
	assert.Equal(t, -time.Minute, a.Remaining(now.Add(6*time.Minute)))
}

func TestNew_NegativeDurationClampedToZero(t *testing.T) {
	now := time.Now()
	a := New("", "general", -time.Minute, "", now)
	assert.Equal(t, time.Duration(0), a.AgreedDuration)
	assert.Equal(t, now, a.ExpiresAt)
}

func TestStore_SaveAndGetActive(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	late := New("a", "video", 10*time.Minute, "", now)
	early := New("b", "social", 5*time.Minute, "", now)
	require.NoError(t, s.Save(late))
	require.NoError(t, s.Save(early))

	active, err := s.GetActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID, "active agreements ordered by expiry")
	assert.Equal(t, late.ID, active[1].ID)
}

func TestStore_MarkCompletedIdempotent(t *testing.T) {
	s := newTestStore(t)
	a := New("x", "video", time.Minute, "", time.Now())
	require.NoError(t, s.Save(a))

	ok, err := s.MarkCompleted(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkCompleted(a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second mark must be a no-op")

	got, found := s.Get(a.ID)
	require.True(t, found)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Nil(t, got.ViolatedAt)
}

func TestStore_MarkViolatedIdempotent(t *testing.T) {
	s := newTestStore(t)
	a := New("x", "video", time.Minute, "", time.Now())
	require.NoError(t, s.Save(a))

	at := time.Now().Add(2 * time.Minute)
	ok, err := s.MarkViolated(a.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkViolated(a.ID, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.Get(a.ID)
	assert.Equal(t, StatusViolated, got.Status)
	require.NotNil(t, got.ViolatedAt)
	assert.True(t, got.ViolatedAt.Equal(at), "violation time set exactly once")
}

func TestStore_MarkViolatedAfterCompletedIsNoop(t *testing.T) {
	s := newTestStore(t)
	a := New("x", "video", time.Minute, "", time.Now())
	require.NoError(t, s.Save(a))

	ok, err := s.MarkCompleted(a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.MarkViolated(a.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.Get(a.ID)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestStore_MarkUnknownID(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.MarkCompleted("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetByDateRange(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := New("tube", "video", time.Minute, "", base)
	second := New("tube", "video", time.Minute, "", base.AddDate(0, 0, 1))
	other := New("chat", "social", time.Minute, "", base.AddDate(0, 0, 1))
	for _, a := range []*Agreement{first, second, other} {
		require.NoError(t, s.Save(a))
	}

	got, err := s.GetByDateRange("tube", base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)

	got, err = s.GetByDateRange("", base.AddDate(0, 0, 1), base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, got, 2, "empty subject matches all subjects")

	got, err = s.GetByDateRange("tube", base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, got, 1, "range end is exclusive")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agreements")
	s, err := NewStore(path)
	require.NoError(t, err)

	a := New("tube", "video", time.Minute, "conv-9", time.Now())
	require.NoError(t, s.Save(a))
	_, err = s.MarkViolated(a.ID, time.Now())
	require.NoError(t, err)

	reopened, err := NewStore(path)
	require.NoError(t, err)

	got, found := reopened.Get(a.ID)
	require.True(t, found)
	assert.Equal(t, StatusViolated, got.Status)
	assert.Equal(t, "conv-9", got.ConversationID)
}

func TestStore_Extend(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	orig := New("tube", "video", 5*time.Minute, "conv-1", now)
	require.NoError(t, s.Save(orig))

	later := now.Add(5 * time.Minute)
	next, err := s.Extend(orig.ID, 10*time.Minute, later)
	require.NoError(t, err)

	assert.Equal(t, orig.ID, next.PrevID)
	assert.Equal(t, StatusActive, next.Status)
	assert.Equal(t, later.Add(10*time.Minute), next.ExpiresAt)

	kept, _ := s.Get(orig.ID)
	assert.Equal(t, 5*time.Minute, kept.AgreedDuration, "original never mutated")

	_, err = s.Extend("missing", time.Minute, now)
	assert.Error(t, err)
}
