package quiet

import (
	"testing"
	"time"

	"github.com/harunnryd/yakusoku/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuppressed_Window(t *testing.T) {
	// 22:00 every day for 8 hours
	s, err := New([]config.QuietWindowConfig{{Start: "0 22 * * *", Duration: "8h"}})
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)

	assert.False(t, s.Suppressed(day.Add(12*time.Hour)), "noon is outside quiet hours")
	assert.True(t, s.Suppressed(day.Add(23*time.Hour)), "23:00 is inside quiet hours")
	assert.True(t, s.Suppressed(day.Add(24*time.Hour+5*time.Hour)), "05:00 next day still inside")
	assert.False(t, s.Suppressed(day.Add(24*time.Hour+7*time.Hour)), "07:00 next day is after the window")
}

func TestSuppressed_Snooze(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, s.Suppressed(now))

	s.Snooze(now.Add(10 * time.Minute))
	assert.True(t, s.Suppressed(now))
	assert.False(t, s.Suppressed(now.Add(11*time.Minute)), "snooze expired")

	s.Snooze(time.Time{})
	assert.False(t, s.Suppressed(now), "zero time clears the snooze")
}

func TestNew_InvalidSpecs(t *testing.T) {
	_, err := New([]config.QuietWindowConfig{{Start: "not a cron", Duration: "1h"}})
	assert.Error(t, err)

	_, err = New([]config.QuietWindowConfig{{Start: "0 22 * * *", Duration: ""}})
	assert.Error(t, err)

	_, err = New([]config.QuietWindowConfig{{Start: "0 22 * * *", Duration: "-1h"}})
	assert.Error(t, err)
}
