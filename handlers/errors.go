package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"uxcellence/services"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindPrecondition, services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "code"} with the status of its kind.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)
	message := err.Error()

	var domain *services.Error
	if errors.As(err, &domain) && kind != services.KindTransport {
		message = domain.Message
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	code := string(kind)
	if code == "" {
		code = "internal"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func roundParam(c *gin.Context) (int, bool) {
	round, err := strconv.Atoi(c.Param("number"))
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round number", "code": string(services.KindValidation)})
		return 0, false
	}
	return round, true
}
