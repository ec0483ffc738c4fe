package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/models"
	"user-management-backend/internal/ratelimit"
	"user-management-backend/internal/repository"
	"user-management-backend/pkg/token"

	"github.com/google/uuid"
)

// Client-facing messages. A replayed refresh token gets the same message as
// one that was never issued.
const (
	msgInvalidCredentials  = "invalid credentials"
	msgInvalidRefreshToken = "invalid refresh token"
	msgRevokedOrNotFound   = "refresh token revoked or not found"
	msgRefreshExpired      = "refresh token expired"
)

type AuthService struct {
	users   UserStore
	tokens  RefreshTokenStore
	audit   AuditStore
	codec   *token.Codec
	hasher  PasswordHasher
	limiter LoginLimiter
	logger  *slog.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type AuthOption func(*AuthService)

// WithLoginLimiter enables failed-login throttling.
func WithLoginLimiter(l LoginLimiter) AuthOption {
	return func(s *AuthService) { s.limiter = l }
}

func WithLogger(l *slog.Logger) AuthOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for record expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, audit AuditStore, codec *token.Codec, hasher PasswordHasher, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		tokens: tokens,
		audit:  audit,
		codec:  codec,
		hasher: hasher,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Name     string      `json:"name" validate:"required,min=2,max=100"`
	Email    string      `json:"email" validate:"required,email,max=191"`
	Password string      `json:"password" validate:"required,min=6,pwbytes"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=user admin"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User models.PublicUser `json:"user"`
	TokenPair
}

// Register creates a new user account and issues its first token pair
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}

	// Check if email already exists
	_, err := s.users.FindUserByEmail(ctx, in.Email, false)
	switch {
	case err == nil:
		return nil, apperrors.ConflictError("email already exists", nil)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.InternalError("failed to look up user", err)
	}

	passwordHash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         in.Role,
	}
	pair, session, err := s.mintTokens(user, s.now())
	if err != nil {
		return nil, err
	}

	// Account and first session are stored atomically.
	if err := s.users.CreateUserWithSession(ctx, user, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ConflictError("email already exists", err)
		}
		return nil, apperrors.InternalError("failed to create user", err)
	}

	s.record(ctx, &user.ID, models.AuditRegister, fmt.Sprintf("User %s registered", user.Email))
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))

	return &AuthResult{User: user.Public(), TokenPair: *pair}, nil
}

// Login authenticates a user and issues a new token pair. Earlier refresh
// tokens of the user stay valid.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, in.Email); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				return nil, apperrors.RateLimitedError("too many failed login attempts", err)
			}
			s.logger.Warn("login limiter unavailable", slog.String("error", err.Error()))
		}
	}

	user, err := s.users.FindUserByEmail(ctx, in.Email, false)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.InternalError("failed to look up user", err)
		}
		// Spend the same bcrypt work as a real comparison.
		s.hasher.ComparePassword(s.placeholderHash(), in.Password)
		return nil, s.loginFailed(ctx, in.Email)
	}

	if !s.hasher.ComparePassword(user.PasswordHash, in.Password) {
		return nil, s.loginFailed(ctx, in.Email)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, in.Email); err != nil {
			s.logger.Warn("login limiter reset failed", slog.String("error", err.Error()))
		}
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &user.ID, models.AuditLogin, fmt.Sprintf("User %s logged in", user.Email))

	return &AuthResult{User: user.Public(), TokenPair: *pair}, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
// Every gate fails without mutating the store.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, apperrors.UnauthorizedError(msgInvalidRefreshToken, nil)
	}

	payload, err := s.codec.Verify(rawToken, token.Refresh)
	if err != nil {
		return nil, apperrors.UnauthorizedError(msgInvalidRefreshToken, err)
	}

	oldHash := token.Hash(rawToken)
	stored, err := s.tokens.FindRefreshTokenByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.UnauthorizedError(msgRevokedOrNotFound, err)
		}
		return nil, apperrors.InternalError("failed to look up refresh token", err)
	}
	if stored.Revoked || stored.UserID != payload.SubjectID {
		s.logger.Warn("revoked refresh token presented", slog.String("user_id", stored.UserID))
		return nil, apperrors.UnauthorizedError(msgRevokedOrNotFound, nil)
	}

	// Not revoked at this point, so a record that is not live has expired.
	now := s.now()
	if !stored.Live(now) {
		return nil, apperrors.UnauthorizedError(msgRefreshExpired, nil)
	}

	user, err := s.users.FindUserByID(ctx, payload.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundError("user not found", err)
		}
		return nil, apperrors.InternalError("failed to look up user", err)
	}

	pair, next, err := s.mintTokens(user, now)
	if err != nil {
		return nil, err
	}

	// Revoke-then-create in one store call. If the revoke cannot be
	// confirmed the new pair is discarded.
	if err := s.tokens.RotateRefreshToken(ctx, oldHash, next, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyModified) {
			s.logger.Warn("refresh token rotation lost race", slog.String("user_id", user.ID))
			return nil, apperrors.UnauthorizedError(msgRevokedOrNotFound, err)
		}
		return nil, apperrors.InternalError("failed to rotate refresh token", err)
	}

	s.record(ctx, &user.ID, models.AuditRefresh, "Refresh token rotated")

	return pair, nil
}

// Logout revokes the given refresh token. An empty, unknown or already
// revoked token is not an error. The access token stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	hash := token.Hash(rawToken)
	stored, err := s.tokens.FindRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.InternalError("failed to look up refresh token", err)
	}
	if stored.Revoked {
		return nil
	}

	if err := s.tokens.RevokeRefreshToken(ctx, hash, nil); err != nil {
		if errors.Is(err, repository.ErrAlreadyModified) {
			return nil
		}
		return apperrors.InternalError("failed to revoke refresh token", err)
	}

	s.record(ctx, &stored.UserID, models.AuditLogout, "Refresh token revoked")
	return nil
}

// VerifyAccessToken returns the caller identity carried by an access token.
func (s *AuthService) VerifyAccessToken(raw string) (Actor, error) {
	payload, err := s.codec.Verify(raw, token.Access)
	if err != nil {
		return Actor{}, apperrors.UnauthorizedError("invalid or expired token", err)
	}
	role := models.Role(payload.Role)
	if !role.Valid() {
		return Actor{}, apperrors.UnauthorizedError("invalid or expired token", nil)
	}
	return Actor{ID: payload.SubjectID, Role: role}, nil
}

// issueTokens mints a pair for user and persists the refresh record.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	pair, record, err := s.mintTokens(user, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, apperrors.InternalError("failed to store refresh token", err)
	}
	return pair, nil
}

// mintTokens signs a pair and builds, without persisting, the refresh record.
func (s *AuthService) mintTokens(user *models.User, now time.Time) (*TokenPair, *models.RefreshToken, error) {
	accessToken, _, err := s.codec.Sign(user.ID, string(user.Role), token.Access)
	if err != nil {
		return nil, nil, apperrors.InternalError("failed to generate access token", err)
	}
	refreshToken, _, err := s.codec.Sign(user.ID, string(user.Role), token.Refresh)
	if err != nil {
		return nil, nil, apperrors.InternalError("failed to generate refresh token", err)
	}

	record := &models.RefreshToken{
		TokenHash: token.Hash(refreshToken),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.codec.TTL(token.Refresh)),
		CreatedAt: now,
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, record, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) error {
	if s.limiter != nil {
		if err := s.limiter.Fail(ctx, email); err != nil {
			s.logger.Warn("login limiter update failed", slog.String("error", err.Error()))
		}
	}
	return apperrors.UnauthorizedError(msgInvalidCredentials, nil)
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.HashPassword("placeholder-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// record writes an audit entry. Failures are logged, never returned.
func (s *AuthService) record(ctx context.Context, userID *string, action, details string) {
	writeAudit(ctx, s.audit, s.logger, userID, action, details)
}

func writeAudit(ctx context.Context, audit AuditStore, logger *slog.Logger, userID *string, action, details string) {
	if audit == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, userID, action, details); err != nil {
		logger.Warn("audit write failed", slog.String("action", action), slog.String("error", err.Error()))
	}
}
