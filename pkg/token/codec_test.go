package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewCodecRejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected shared secrets to be rejected")
	}

	cfg = testConfig()
	cfg.AccessSecret = ""
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}

	cfg = testConfig()
	cfg.RefreshTTL = 0
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewCodec(testConfig(), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	for _, class := range []Class{Access, Refresh} {
		raw, issued, err := codec.Sign("user-1", "admin", class)
		if err != nil {
			t.Fatalf("sign %s: %v", class, err)
		}
		got, err := codec.Verify(raw, class)
		if err != nil {
			t.Fatalf("verify %s: %v", class, err)
		}
		if got.SubjectID != "user-1" || got.Role != "admin" {
			t.Fatalf("unexpected payload %+v", got)
		}
		if got.ID != issued.ID {
			t.Fatalf("expected token id %q, got %q", issued.ID, got.ID)
		}
		if want := now.Add(codec.TTL(class)); !got.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, got.ExpiresAt)
		}
	}
}

func TestVerifyRejectsOtherClass(t *testing.T) {
	codec, err := NewCodec(testConfig())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	access, _, err := codec.Sign("user-1", "user", Access)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(access, Refresh); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected access token to fail refresh verification, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	codec, err := NewCodec(testConfig())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	foreignCfg := testConfig()
	foreignCfg.RefreshSecret = "someone-elses-secret"
	foreign, err := NewCodec(foreignCfg)
	if err != nil {
		t.Fatalf("new foreign codec: %v", err)
	}

	raw, _, err := foreign.Sign("user-1", "user", Refresh)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(raw, Refresh); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	codec, err := NewCodec(testConfig(), WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	raw, _, err := codec.Sign("user-1", "user", Access)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock = now.Add(2 * time.Hour)
	if _, err := codec.Verify(raw, Access); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec, err := NewCodec(testConfig())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	for _, raw := range []string{"", "not-a-jwt", strings.Repeat("a.", 3)} {
		if _, err := codec.Verify(raw, Refresh); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected invalid signature for %q, got %v", raw, err)
		}
	}
}

func TestSignSameSecondProducesDistinctTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewCodec(testConfig(), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	a, _, err := codec.Sign("user-1", "user", Refresh)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, _, err := codec.Sign("user-1", "user", Refresh)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if a == b || Hash(a) == Hash(b) {
		t.Fatal("expected distinct tokens and hashes")
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Fatal("expected deterministic hash")
	}
	if got := Hash("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected sha256 digest %s", got)
	}
}
