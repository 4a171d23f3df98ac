package approval

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPublishSlot(t *testing.T) {
	cfg := SlotConfig{Hour: 9}
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday before hour", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{"monday exactly at hour", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
		{"tuesday", time.Date(2026, 3, 3, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
		{"friday after hour", time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPublishSlot(tt.now, cfg)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNextPublishSlotFixedOffset(t *testing.T) {
	cfg := SlotConfig{Hour: 9, UTCOffsetHours: 2}

	// Monday 07:30 UTC is 09:30 local, past the slot
	got := NextPublishSlot(time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC), cfg)
	assert.Equal(t, time.Wednesday, got.Weekday())
	assert.Equal(t, 9, got.Hour())
	assert.True(t, time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC).Equal(got))

	// Sunday 23:00 UTC is already Monday 01:00 local
	got = NextPublishSlot(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), cfg)
	assert.True(t, time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC).Equal(got))
}

func TestNextPublishSlotProperties(t *testing.T) {
	cfg := SlotConfig{Hour: 9, UTCOffsetHours: -5}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24*21; i++ {
		now := start.Add(time.Duration(i)*time.Hour + 17*time.Minute)
		got := NextPublishSlot(now, cfg)

		require.True(t, got.After(now), "slot %s not after %s", got, now)
		assert.LessOrEqual(t, got.Sub(now), 7*24*time.Hour)
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, got.Weekday())
		assert.Equal(t, 9, got.Hour())
		assert.Zero(t, got.Minute())
	}
}

func TestNextPublishSlotCustomDays(t *testing.T) {
	days, err := ParseWeekdays([]string{"Tue", "thursday"})
	require.NoError(t, err)

	got := NextPublishSlot(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), SlotConfig{Days: days, Hour: 14})
	assert.True(t, time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC).Equal(got))

	_, err = ParseWeekdays([]string{"someday"})
	assert.Error(t, err)
}

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		require.Len(t, tok, 64)
		_, err = hex.DecodeString(tok)
		require.NoError(t, err)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
