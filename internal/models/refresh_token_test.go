package models

import (
	"testing"
	"time"
)

func TestRefreshTokenLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  RefreshToken
		want bool
	}{
		{"unrevoked before expiry", RefreshToken{ExpiresAt: now.Add(time.Second)}, true},
		{"expires exactly now", RefreshToken{ExpiresAt: now}, false},
		{"past expiry", RefreshToken{ExpiresAt: now.Add(-time.Minute)}, false},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Live(now); got != tt.want {
				t.Fatalf("Live() = %v, want %v", got, tt.want)
			}
		})
	}
}
