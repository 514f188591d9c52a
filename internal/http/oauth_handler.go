package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/oauth"
)

// ClientRegistrar registra clientes OAuth en el proveedor.
type ClientRegistrar interface {
	RegisterClient(ctx context.Context, reg oauth.Registration) (oauth.ClientCredentials, error)
}

// OAuthConfigReport resume qué piezas de configuración OAuth están presentes.
type OAuthConfigReport struct {
	BaseURL         string `json:"oauth_base_url"`
	RedirectURI     string `json:"redirect_uri"`
	ClientID        string `json:"client_id"`
	HasClientID     bool   `json:"has_client_id"`
	HasClientSecret bool   `json:"has_client_secret"`
	HasPreauthKey   bool   `json:"has_preauth_key"`
}

type OAuthHandler struct {
	logger    *zap.Logger
	registrar ClientRegistrar
	report    OAuthConfigReport
}

func NewOAuthHandler(logger *zap.Logger, registrar ClientRegistrar, report OAuthConfigReport) *OAuthHandler {
	return &OAuthHandler{logger: logger, registrar: registrar, report: report}
}

// Register maneja POST /api/oauth/register.
func (h *OAuthHandler) Register(c *gin.Context) {
	var req struct {
		ClientName        string   `json:"client_name"`
		ClientDescription string   `json:"client_description"`
		Scopes            []string `json:"scopes"`
		PreauthKey        string   `json:"preauth_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid oauth register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.PreauthKey) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing preauth key"})
		return
	}

	client, err := h.registrar.RegisterClient(c.Request.Context(), oauth.Registration{
		ClientName:        req.ClientName,
		ClientDescription: req.ClientDescription,
		RedirectURIs:      []string{h.report.RedirectURI},
		Scopes:            req.Scopes,
		PreauthKey:        req.PreauthKey,
	})
	if err != nil {
		status, msg := statusFor(err, "registration failed")
		logError(h.logger, status, "oauth client registration failed", err)
		c.JSON(status, gin.H{"error": "registration failed", "details": msg})
		return
	}

	h.logger.Info("oauth client registered", zap.String("client_id", client.ClientID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"client": gin.H{
			"client_id":     client.ClientID,
			"client_secret": client.ClientSecret,
			"client_name":   client.ClientName,
			"redirect_uris": client.RedirectURIs,
			"scopes":        client.Scopes,
		},
		"message": "add OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET to the environment",
	})
}

// Config maneja GET /api/oauth/register.
func (h *OAuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.report)
}
