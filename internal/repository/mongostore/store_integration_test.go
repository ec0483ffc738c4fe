//go:build integration

package mongostore

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"user-management-backend/internal/models"
	"user-management-backend/internal/repository"

	"github.com/google/uuid"
)

// Run with: MONGO_TEST_URI=mongodb://localhost:27017 go test -tags integration ./internal/repository/mongostore/
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "users_test_" + uuid.NewString()[:8]
	s, err := Connect(ctx, uri, dbName)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.users.Database().Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Ann", Email: "Ann@X.com", PasswordHash: "h"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, &models.User{Name: "Dup", Email: "ann@x.com", PasswordHash: "h"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.FindUserByEmail(ctx, "ANN@x.com", false)
	if err != nil || got.ID != u.ID {
		t.Fatalf("find by email: %v %+v", err, got)
	}

	name := "Ann B"
	updated, err := s.UpdateUser(ctx, u.ID, models.UserUpdate{Name: &name})
	if err != nil || updated.Name != name {
		t.Fatalf("update: %v %+v", err, updated)
	}

	if err := s.SoftDeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := s.FindUserByID(ctx, u.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "ann@x.com", true); err != nil {
		t.Fatalf("deleted user should be visible with includeDeleted: %v", err)
	}

	users, total, err := s.ListUsers(ctx, 0, 10)
	if err != nil || total != 0 || len(users) != 0 {
		t.Fatalf("list: %v %d %d", err, total, len(users))
	}
}

func TestRotateSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.RefreshToken{TokenHash: "old", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	if err := s.CreateRefreshToken(ctx, old); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := &models.RefreshToken{TokenHash: uuid.NewString(), UserID: "u1", ExpiresAt: now.Add(time.Hour)}
			err := s.RotateRefreshToken(ctx, "old", next, now)
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, repository.ErrAlreadyModified):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected a single winner, got %d", wins.Load())
	}
	got, err := s.FindRefreshTokenByHash(ctx, "old")
	if err != nil || !got.Revoked || got.ReplacedByHash == nil {
		t.Fatalf("expected revoked and linked record: %v %+v", err, got)
	}

	if err := s.RevokeRefreshToken(ctx, "old", nil); !errors.Is(err, repository.ErrAlreadyModified) {
		t.Fatalf("expected ErrAlreadyModified, got %v", err)
	}
}

func TestPurgeAndAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.CreateRefreshToken(ctx, &models.RefreshToken{TokenHash: "stale", UserID: "u1", ExpiresAt: now.Add(-time.Minute)})
	_ = s.CreateRefreshToken(ctx, &models.RefreshToken{TokenHash: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)})

	n, err := s.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	// The TTL monitor may have removed the stale record first.
	if n > 1 {
		t.Fatalf("expected at most one purged record, got %d", n)
	}
	if _, err := s.FindRefreshTokenByHash(ctx, "live"); err != nil {
		t.Fatalf("live record missing: %v", err)
	}

	uid := "u1"
	if err := s.CreateAuditLog(ctx, &uid, models.AuditLogin, "User logged in"); err != nil {
		t.Fatalf("audit: %v", err)
	}
	logs, err := s.ListAuditLogs(ctx, uid, 10)
	if err != nil || len(logs) != 1 || logs[0].Action != models.AuditLogin {
		t.Fatalf("list audit: %v %+v", err, logs)
	}
}

func TestCreateUserWithSessionCleansUp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)

	ann := &models.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "h"}
	if err := s.CreateUserWithSession(ctx, ann, &models.RefreshToken{TokenHash: "h1", ExpiresAt: expires}); err != nil {
		t.Fatalf("create with session: %v", err)
	}

	bob := &models.User{Name: "Bob", Email: "bob@x.com", PasswordHash: "h"}
	err := s.CreateUserWithSession(ctx, bob, &models.RefreshToken{TokenHash: "h1", ExpiresAt: expires})
	if err == nil || errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected a non-duplicate-email error, got %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "bob@x.com", true); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected user to be removed, got %v", err)
	}
}
