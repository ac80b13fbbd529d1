package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// failService maps a service error to the response envelope.
// Unexpected errors are logged and surfaced generically.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrConflict):
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, err.Error())
	case errors.Is(err, service.ErrNotAvailable):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotAvailable)
	default:
		log.Error().Err(err).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
