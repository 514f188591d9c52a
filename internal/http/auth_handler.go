package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/domain"
	"biopaper-tutor/internal/oauth"
	"biopaper-tutor/internal/service"
)

const exchangePath = "/api/auth/callback/popup"

// IdentityProvider es lo que AuthHandler necesita del proveedor OAuth.
type IdentityProvider interface {
	Configured() bool
	AuthorizeURL(redirectURI, state string) string
	ExchangeCodeForSession(ctx context.Context, code, redirectURI string) (domain.User, domain.Tokens, error)
	FetchProfile(ctx context.Context, accessToken string) (domain.User, error)
}

// AuthHandler agrupa login por popup y manejo de la cookie de sesión.
type AuthHandler struct {
	logger      *zap.Logger
	provider    IdentityProvider
	sessions    *service.SessionStore
	states      oauth.StateStore
	redirectURI string
	verifyState bool
}

func NewAuthHandler(
	logger *zap.Logger,
	provider IdentityProvider,
	sessions *service.SessionStore,
	states oauth.StateStore,
	redirectURI string,
	verifyState bool,
) *AuthHandler {
	if states == nil {
		states = oauth.NewMemoryStateStore()
	}
	return &AuthHandler{
		logger:      logger,
		provider:    provider,
		sessions:    sessions,
		states:      states,
		redirectURI: redirectURI,
		verifyState: verifyState,
	}
}

// Authorize maneja GET /api/auth/authorize.
func (h *AuthHandler) Authorize(c *gin.Context) {
	if !h.provider.Configured() {
		respondError(c, h.logger, domain.Configuration("OAuth configuration incomplete: OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET are required"), "could not start login")
		return
	}
	state := oauth.NewState()
	if err := h.states.Save(c.Request.Context(), state, oauth.StateTTL); err != nil {
		respondError(c, h.logger, err, "could not start login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorize_url": h.provider.AuthorizeURL(h.redirectURI, state),
		"state":         state,
		"redirect_uri":  h.redirectURI,
	})
}

// CallbackPage maneja GET /api/auth/callback/oauth.
func (h *AuthHandler) CallbackPage(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, callbackTemplateName, callbackPageData{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		Error:       c.Query("error"),
		ExchangeURL: exchangePath,
		RedirectURI: h.redirectURI,
	})
}

// ExchangePopup maneja POST /api/auth/callback/popup.
func (h *AuthHandler) ExchangePopup(c *gin.Context) {
	var req struct {
		Code        string `json:"code"`
		State       string `json:"state"`
		RedirectURI string `json:"redirect_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid oauth exchange request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	if h.verifyState {
		ok, err := h.states.Consume(ctx, strings.TrimSpace(req.State))
		if err != nil {
			h.logger.Error("oauth state lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not verify state"})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid or expired state"})
			return
		}
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		redirectURI = h.redirectURI
	}
	user, tokens, err := h.provider.ExchangeCodeForSession(ctx, req.Code, redirectURI)
	if err != nil {
		status, msg := statusFor(err, "login failed")
		logError(h.logger, status, "oauth exchange failed", err)
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}

	if _, err := h.sessions.Issue(c.Writer, user, tokens); err != nil {
		status, msg := statusFor(err, "could not create session")
		logError(h.logger, status, "issue session failed", err)
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	h.logger.Info("user logged in", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// CreateSession maneja POST /api/auth/session. El access token se valida
// contra userinfo y debe pertenecer al mismo usuario que se declara.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req struct {
		User   domain.User   `json:"user"`
		Tokens domain.Tokens `json:"tokens"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.User.ID) == "" || strings.TrimSpace(req.Tokens.AccessToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user or access token"})
		return
	}

	profile, err := h.provider.FetchProfile(c.Request.Context(), req.Tokens.AccessToken)
	if err != nil {
		h.logger.Warn("session token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
		return
	}
	if profile.ID != strings.TrimSpace(req.User.ID) {
		h.logger.Warn("session user mismatch", zap.String("claimed", req.User.ID), zap.String("resolved", profile.ID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access token does not belong to user"})
		return
	}

	session, err := h.sessions.Issue(c.Writer, profile, req.Tokens)
	if err != nil {
		respondError(c, h.logger, err, "could not create session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": session.User, "expires": session.Expires})
}

// GetSession maneja GET /api/auth/session.
func (h *AuthHandler) GetSession(c *gin.Context) {
	session, ok := getSession(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": session.User, "expires": session.Expires})
}

// DeleteSession maneja DELETE /api/auth/session.
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	h.sessions.Revoke(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
