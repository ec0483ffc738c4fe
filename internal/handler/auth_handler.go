package handler

import (
	"log/slog"
	"net/http"
	"time"

	apperrors "user-management-backend/internal/errors"
	"user-management-backend/internal/service"
	"user-management-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName   = "refresh_token"
	refreshCookiePath   = "/auth"
	refreshTokenHeader  = "X-Refresh-Token"
	invalidBodyMessage  = "Invalid request body"
	logoutSuccessNotice = "Logged out successfully"
)

type AuthHandler struct {
	authService  *service.AuthService
	cookieMaxAge time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler wires the auth endpoints. cookieMaxAge should match the
// refresh token lifetime.
func NewAuthHandler(authService *service.AuthService, cookieMaxAge time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService:  authService,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// RefreshRequest carries a refresh token in the JSON body. It is optional:
// the header and cookie are checked when it is empty.
type RefreshRequest struct {
	Token string `json:"token"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, apperrors.ValidationError(invalidBodyMessage, nil, err), h.logger)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	utils.CreatedResponse(c, res)
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, apperrors.ValidationError(invalidBodyMessage, nil, err), h.logger)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	utils.SuccessResponse(c, res)
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	pair, err := h.authService.Refresh(c.Request.Context(), refreshTokenFrom(c))
	if err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	utils.SuccessResponse(c, pair)
}

// Logout revokes the refresh token and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), refreshTokenFrom(c)); err != nil {
		utils.AppErrorResponse(c, err, h.logger)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.secureCookie, true)
	utils.MessageResponse(c, logoutSuccessNotice)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(h.cookieMaxAge.Seconds()), refreshCookiePath, "", h.secureCookie, true)
}

// refreshTokenFrom looks in the JSON body, then the X-Refresh-Token header,
// then the refresh_token cookie.
func refreshTokenFrom(c *gin.Context) string {
	var req RefreshRequest
	if c.Request.ContentLength != 0 {
		// A missing or malformed body just means the token is elsewhere.
		_ = c.ShouldBindJSON(&req)
	}
	if req.Token != "" {
		return req.Token
	}
	if tok := c.GetHeader(refreshTokenHeader); tok != "" {
		return tok
	}
	if tok, err := c.Cookie(refreshCookieName); err == nil {
		return tok
	}
	return ""
}
