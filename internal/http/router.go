package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"biopaper-tutor/internal/service"
)

// RouterDeps agrupa handlers y servicios que necesita NewRouter.
type RouterDeps struct {
	Sessions      *service.SessionStore
	Auth          *AuthHandler
	Conversations *ConversationHandler
	Chat          *ChatHandler
	PDF           *PDFHandler
	OAuth         *OAuthHandler
	// Gatherer expone /metrics; nil lo deshabilita.
	Gatherer prometheus.Gatherer
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(callbackPage)

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", SessionMiddleware(deps.Sessions))

	auth := api.Group("/auth")
	auth.GET("/authorize", deps.Auth.Authorize)
	auth.GET("/callback/oauth", deps.Auth.CallbackPage)
	auth.POST("/callback/popup", deps.Auth.ExchangePopup)
	auth.POST("/session", deps.Auth.CreateSession)
	auth.GET("/session", deps.Auth.GetSession)
	auth.DELETE("/session", deps.Auth.DeleteSession)

	oauthGroup := api.Group("/oauth")
	oauthGroup.POST("/register", deps.OAuth.Register)
	oauthGroup.GET("/register", deps.OAuth.Config)

	protected := api.Group("", RequireIdentity())
	protected.GET("/conversations", deps.Conversations.List)
	protected.POST("/conversations", deps.Conversations.Create)
	protected.DELETE("/conversations/:id", deps.Conversations.Delete)
	protected.GET("/conversations/:id/messages", deps.Conversations.Messages)
	protected.POST("/chat", deps.Chat.Chat)
	protected.POST("/pdf/parse", deps.PDF.Parse)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user, ok := GetIdentity(c); ok {
			fields = append(fields, zap.String("user_id", user.ID))
		}
		logger.Info("request", fields...)
	}
}
