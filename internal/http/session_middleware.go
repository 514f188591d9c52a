package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"biopaper-tutor/internal/domain"
	"biopaper-tutor/internal/service"
)

const sessionKey = "auth_session"

// SessionMiddleware resuelve la identidad una sola vez por request: token de
// sesión en "Authorization: Bearer" o, si no hay header, la cookie de sesión.
// Nunca rechaza; las rutas protegidas agregan RequireIdentity.
func SessionMiddleware(store *service.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		var (
			session domain.Session
			ok      bool
		)
		if token, hasBearer := bearerToken(c.GetHeader("Authorization")); hasBearer {
			parsed, err := store.ParseToken(token)
			session, ok = parsed, err == nil
		} else {
			session, ok = store.Read(c.Writer, c.Request)
		}

		if ok {
			c.Set(sessionKey, session)
			c.Request = c.Request.WithContext(domain.WithIdentity(c.Request.Context(), session.User))
		}
		c.Next()
	}
}

// RequireIdentity corta con 401 antes de llegar al handler.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// GetIdentity obtiene el usuario autenticado desde el contexto del request.
func GetIdentity(c *gin.Context) (domain.User, bool) {
	return domain.IdentityFrom(c.Request.Context())
}

func getSession(c *gin.Context) (domain.Session, bool) {
	val, ok := c.Get(sessionKey)
	if !ok {
		return domain.Session{}, false
	}
	session, ok := val.(domain.Session)
	return session, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
