package service

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"user-management-backend/internal/database"
	"user-management-backend/internal/repository"
	"user-management-backend/pkg/token"
	"user-management-backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTokenConfig() token.Config {
	return token.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func newTestCodec(t *testing.T, clock *testClock) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(testTokenConfig(), token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

type testEnv struct {
	db     *gorm.DB
	clock  *testClock
	codec  *token.Codec
	users  *repository.UserRepository
	tokens *repository.RefreshTokenRepository
	audit  *repository.AuditRepository
	auth   *AuthService
	svc    *UserService
}

func newTestEnv(t *testing.T, opts ...AuthOption) *testEnv {
	t.Helper()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:     db,
		clock:  newTestClock(),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewRefreshTokenRepo(db),
		audit:  repository.NewAuditRepo(db),
	}
	env.codec = newTestCodec(t, env.clock)
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)

	opts = append([]AuthOption{WithClock(env.clock.Now), WithLogger(testLogger())}, opts...)
	env.auth = NewAuthService(env.users, env.tokens, env.audit, env.codec, hasher, opts...)
	env.svc = NewUserService(env.users, env.audit, hasher, testLogger())
	return env
}
