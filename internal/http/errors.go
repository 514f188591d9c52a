package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biopaper-tutor/internal/domain"
	"biopaper-tutor/internal/oauth"
)

// statusFor traduce un error de dominio a status HTTP y a un mensaje apto para
// el cliente. Lo desconocido devuelve fallback para no filtrar detalles internos.
func statusFor(err error, fallback string) (int, string) {
	var (
		tokenErr   *oauth.TokenExchangeError
		profileErr *oauth.ProfileFetchError
		regErr     *oauth.RegistrationError
		de         *domain.Error
	)
	switch {
	case errors.As(err, &de):
		switch de.Kind {
		case domain.KindConfiguration:
			return http.StatusInternalServerError, de.Message
		case domain.KindValidation:
			return http.StatusBadRequest, de.Message
		case domain.KindAuthorization:
			return http.StatusUnauthorized, de.Message
		case domain.KindNotFound:
			return http.StatusNotFound, de.Message
		case domain.KindUpstream:
			return http.StatusBadGateway, de.Message
		}
		return http.StatusInternalServerError, fallback
	case errors.As(err, &tokenErr), errors.As(err, &profileErr):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &regErr):
		return http.StatusBadRequest, regErr.Error()
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, "invalid id"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, fallback
}

// respondError escribe {"error": msg} y loguea según la gravedad.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	logError(logger, status, fallback, err)
	c.JSON(status, gin.H{"error": msg})
}

func logError(logger *zap.Logger, status int, what string, err error) {
	if logger == nil {
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Error(what, zap.Int("status", status), zap.Error(err))
		return
	}
	logger.Warn(what, zap.Int("status", status), zap.Error(err))
}
