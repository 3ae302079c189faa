package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRecord_NeedsRefresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		issuedAt time.Time
		expected bool
	}{
		{"発行直後", now, false},
		{"残り100秒", now.Add(-3500 * time.Second), true},
		{"残りちょうど300秒", now.Add(-3300 * time.Second), false},
		{"残り299秒", now.Add(-3301 * time.Second), true},
		{"期限切れ", now.Add(-2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewTokenRecord("access", "refresh", 3600, tt.issuedAt)
			assert.Equal(t, tt.expected, record.NeedsRefresh(now))
		})
	}
}

func TestTokenRecord_Remaining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	record := NewTokenRecord("access", "refresh", 3600, now.Add(-3500*time.Second))

	assert.Equal(t, 100*time.Second, record.Remaining(now))
}

func TestTokenRecord_JSONFieldNames(t *testing.T) {
	data := []byte(`{"access_token":"a","refresh_token":"r","expires_in":3600,"timestamp":1700000000.5}`)

	var record TokenRecord
	require.NoError(t, json.Unmarshal(data, &record))

	assert.True(t, record.Valid())
	assert.Equal(t, int64(3600), record.ExpiresIn)
	assert.Equal(t, time.Unix(1_700_000_000, 500_000_000), record.IssuedAt())
}

func TestTokenRecord_Valid(t *testing.T) {
	var missing *TokenRecord
	assert.False(t, missing.Valid())
	assert.False(t, (&TokenRecord{AccessToken: "a"}).Valid())
	assert.True(t, (&TokenRecord{AccessToken: "a", RefreshToken: "r"}).Valid())
}
