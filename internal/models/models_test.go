package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Zero Trust for Small Teams", "zero-trust-for-small-teams"},
		{"  AI & Cloud: 2025 Outlook!  ", "ai-cloud-2025-outlook"},
		{"Café Réseau", "cafe-reseau"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestContentSource_IsDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-25 * time.Hour)

	assert.True(t, (&ContentSource{FetchFrequency: "24h"}).IsDue(now))
	assert.False(t, (&ContentSource{FetchFrequency: "24h", LastFetchedAt: &recent}).IsDue(now))
	assert.True(t, (&ContentSource{FetchFrequency: "24h", LastFetchedAt: &old}).IsDue(now))
	assert.True(t, (&ContentSource{FetchFrequency: "daily", LastFetchedAt: &recent}).IsDue(now))
}

func TestStringSlice_ValueScan(t *testing.T) {
	v, err := StringSlice{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	var s StringSlice
	require.NoError(t, s.Scan([]byte(`["x"]`)))
	assert.Equal(t, StringSlice{"x"}, s)

	require.NoError(t, s.Scan(`["y","z"]`))
	assert.Equal(t, StringSlice{"y", "z"}, s)

	require.NoError(t, s.Scan(nil))
	assert.Nil(t, s)
}

func TestPostStatus_Valid(t *testing.T) {
	assert.True(t, PostStatusPendingApproval.Valid())
	assert.False(t, PostStatus("pending").Valid())
}
