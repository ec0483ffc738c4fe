package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/models"
	"user-management-backend/internal/ratelimit"
	"user-management-backend/internal/repository"
	"user-management-backend/internal/service/mocks"
	"user-management-backend/pkg/token"

	"go.uber.org/mock/gomock"
)

type mockDeps struct {
	clock   *testClock
	codec   *token.Codec
	users   *mocks.MockUserStore
	tokens  *mocks.MockRefreshTokenStore
	audit   *mocks.MockAuditStore
	hasher  *mocks.MockPasswordHasher
	limiter *mocks.MockLoginLimiter
}

func newMockDeps(t *testing.T) *mockDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := newTestClock()
	return &mockDeps{
		clock:   clock,
		codec:   newTestCodec(t, clock),
		users:   mocks.NewMockUserStore(ctrl),
		tokens:  mocks.NewMockRefreshTokenStore(ctrl),
		audit:   mocks.NewMockAuditStore(ctrl),
		hasher:  mocks.NewMockPasswordHasher(ctrl),
		limiter: mocks.NewMockLoginLimiter(ctrl),
	}
}

func (d *mockDeps) service(opts ...AuthOption) *AuthService {
	opts = append([]AuthOption{WithClock(d.clock.Now), WithLogger(testLogger())}, opts...)
	return NewAuthService(d.users, d.tokens, d.audit, d.codec, d.hasher, opts...)
}

// liveRefresh signs a refresh token for u1 and expects the lookups that
// precede rotation.
func (d *mockDeps) liveRefresh(t *testing.T) string {
	t.Helper()
	raw, _, err := d.codec.Sign("u1", "user", token.Refresh)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	d.tokens.EXPECT().
		FindRefreshTokenByHash(gomock.Any(), token.Hash(raw)).
		Return(&models.RefreshToken{TokenHash: token.Hash(raw), UserID: "u1", ExpiresAt: d.clock.Now().Add(time.Hour)}, nil)
	d.users.EXPECT().
		FindUserByID(gomock.Any(), "u1").
		Return(&models.User{ID: "u1", Email: "u1@x.com", Role: models.RoleUser}, nil)
	return raw
}

func TestRefreshRotationFailureIssuesNothing(t *testing.T) {
	d := newMockDeps(t)
	raw := d.liveRefresh(t)

	d.tokens.EXPECT().
		RotateRefreshToken(gomock.Any(), token.Hash(raw), gomock.Any(), d.clock.Now()).
		Return(errors.New("connection reset"))
	// No CreateRefreshToken or CreateAuditLog expectation: calling either fails the test.

	pair, err := d.service().Refresh(context.Background(), raw)
	if pair != nil {
		t.Fatalf("expected no pair, got %+v", pair)
	}
	requireCode(t, err, apperrors.CodeInternalError)
}

func TestRefreshLostRaceIsUnauthorized(t *testing.T) {
	d := newMockDeps(t)
	raw := d.liveRefresh(t)

	d.tokens.EXPECT().
		RotateRefreshToken(gomock.Any(), token.Hash(raw), gomock.Any(), gomock.Any()).
		Return(repository.ErrAlreadyModified)

	_, err := d.service().Refresh(context.Background(), raw)
	appErr := requireCode(t, err, apperrors.CodeUnauthorized)
	if appErr.Message != msgRevokedOrNotFound {
		t.Fatalf("expected %q, got %q", msgRevokedOrNotFound, appErr.Message)
	}
}

func TestRefreshNewRecordLinksToReplacement(t *testing.T) {
	d := newMockDeps(t)
	raw := d.liveRefresh(t)

	var next *models.RefreshToken
	d.tokens.EXPECT().
		RotateRefreshToken(gomock.Any(), token.Hash(raw), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, rec *models.RefreshToken, _ time.Time) error {
			next = rec
			return nil
		})
	d.audit.EXPECT().CreateAuditLog(gomock.Any(), gomock.Any(), models.AuditRefresh, gomock.Any()).Return(nil)

	pair, err := d.service().Refresh(context.Background(), raw)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next == nil || next.TokenHash != token.Hash(pair.RefreshToken) || next.UserID != "u1" {
		t.Fatalf("unexpected new record %+v", next)
	}
	if want := d.clock.Now().Add(7 * 24 * time.Hour); !next.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, next.ExpiresAt)
	}
}

func TestRefreshBadSignatureTouchesNoStore(t *testing.T) {
	d := newMockDeps(t)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := d.service().Refresh(context.Background(), raw)
		appErr := requireCode(t, err, apperrors.CodeUnauthorized)
		if appErr.Message != msgInvalidRefreshToken {
			t.Fatalf("%q: expected %q, got %q", raw, msgInvalidRefreshToken, appErr.Message)
		}
	}
}

func TestRefreshSubjectMismatch(t *testing.T) {
	d := newMockDeps(t)
	raw, _, err := d.codec.Sign("u1", "user", token.Refresh)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	d.tokens.EXPECT().
		FindRefreshTokenByHash(gomock.Any(), token.Hash(raw)).
		Return(&models.RefreshToken{UserID: "someone-else", ExpiresAt: d.clock.Now().Add(time.Hour)}, nil)

	_, err = d.service().Refresh(context.Background(), raw)
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestLogoutStoreFailure(t *testing.T) {
	d := newMockDeps(t)
	d.tokens.EXPECT().
		FindRefreshTokenByHash(gomock.Any(), token.Hash("raw")).
		Return(&models.RefreshToken{UserID: "u1"}, nil)
	d.tokens.EXPECT().
		RevokeRefreshToken(gomock.Any(), token.Hash("raw"), nil).
		Return(errors.New("disk full"))

	err := d.service().Logout(context.Background(), "raw")
	requireCode(t, err, apperrors.CodeInternalError)
}

func TestLogoutConcurrentRevokeIsSuccess(t *testing.T) {
	d := newMockDeps(t)
	d.tokens.EXPECT().
		FindRefreshTokenByHash(gomock.Any(), gomock.Any()).
		Return(&models.RefreshToken{UserID: "u1"}, nil)
	d.tokens.EXPECT().
		RevokeRefreshToken(gomock.Any(), gomock.Any(), nil).
		Return(repository.ErrAlreadyModified)

	if err := d.service().Logout(context.Background(), "raw"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestLoginLimiterUnavailableFailsOpen(t *testing.T) {
	d := newMockDeps(t)
	user := &models.User{ID: "u1", Email: "ann@x.com", PasswordHash: "stored", Role: models.RoleUser}

	gomock.InOrder(
		d.limiter.EXPECT().Check(gomock.Any(), "ann@x.com").Return(ratelimit.ErrRedisUnavailable),
		d.users.EXPECT().FindUserByEmail(gomock.Any(), "ann@x.com", false).Return(user, nil),
		d.hasher.EXPECT().ComparePassword("stored", "secret1").Return(true),
		d.limiter.EXPECT().Reset(gomock.Any(), "ann@x.com").Return(ratelimit.ErrRedisUnavailable),
		d.tokens.EXPECT().CreateRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
		d.audit.EXPECT().CreateAuditLog(gomock.Any(), gomock.Any(), models.AuditLogin, gomock.Any()).Return(nil),
	)

	res, err := d.service(WithLoginLimiter(d.limiter)).Login(context.Background(), LoginInput{Email: "Ann@X.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.ID != "u1" {
		t.Fatalf("unexpected user %+v", res.User)
	}
}

func TestLoginUnknownEmailStillHashes(t *testing.T) {
	d := newMockDeps(t)

	d.limiter.EXPECT().Check(gomock.Any(), "ghost@x.com").Return(nil)
	d.users.EXPECT().FindUserByEmail(gomock.Any(), "ghost@x.com", false).Return(nil, repository.ErrNotFound)
	d.hasher.EXPECT().HashPassword(gomock.Any()).Return("placeholder", nil)
	d.hasher.EXPECT().ComparePassword("placeholder", "secret1").Return(false)
	d.limiter.EXPECT().Fail(gomock.Any(), "ghost@x.com").Return(nil)

	_, err := d.service(WithLoginLimiter(d.limiter)).Login(context.Background(), LoginInput{Email: "ghost@x.com", Password: "secret1"})
	appErr := requireCode(t, err, apperrors.CodeUnauthorized)
	if appErr.Message != msgInvalidCredentials {
		t.Fatalf("expected %q, got %q", msgInvalidCredentials, appErr.Message)
	}
}

func TestRegisterSurvivesAuditFailure(t *testing.T) {
	d := newMockDeps(t)

	d.users.EXPECT().FindUserByEmail(gomock.Any(), "ann@x.com", false).Return(nil, repository.ErrNotFound)
	d.hasher.EXPECT().HashPassword("secret1").Return("hashed", nil)
	d.users.EXPECT().CreateUserWithSession(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User, session *models.RefreshToken) error {
			if u.ID == "" || u.PasswordHash != "hashed" || u.Role != models.RoleUser {
				t.Errorf("unexpected user record %+v", u)
			}
			if session.UserID != u.ID || session.TokenHash == "" {
				t.Errorf("unexpected session record %+v", session)
			}
			return nil
		})
	d.audit.EXPECT().CreateAuditLog(gomock.Any(), gomock.Any(), models.AuditRegister, gomock.Any()).Return(errors.New("audit table locked"))

	res, err := d.service().Register(context.Background(), RegisterInput{Name: "Ann", Email: "ann@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.ID == "" || res.RefreshToken == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRegisterDuplicateRaceIsConflict(t *testing.T) {
	d := newMockDeps(t)

	d.users.EXPECT().FindUserByEmail(gomock.Any(), "ann@x.com", false).Return(nil, repository.ErrNotFound)
	d.hasher.EXPECT().HashPassword("secret1").Return("hashed", nil)
	d.users.EXPECT().CreateUserWithSession(gomock.Any(), gomock.Any(), gomock.Any()).Return(repository.ErrDuplicate)

	_, err := d.service().Register(context.Background(), RegisterInput{Name: "Ann", Email: "ann@x.com", Password: "secret1"})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestRegisterSessionWriteFailure(t *testing.T) {
	d := newMockDeps(t)

	d.users.EXPECT().FindUserByEmail(gomock.Any(), "ann@x.com", false).Return(nil, repository.ErrNotFound)
	d.hasher.EXPECT().HashPassword("secret1").Return("hashed", nil)
	d.users.EXPECT().CreateUserWithSession(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("insert refresh token: disk full"))
	// No CreateUser, CreateRefreshToken or audit expectation.

	res, err := d.service().Register(context.Background(), RegisterInput{Name: "Ann", Email: "ann@x.com", Password: "secret1"})
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	requireCode(t, err, apperrors.CodeInternalError)
}
