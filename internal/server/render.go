package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/chorushq/chorus/internal/models"
)

type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// renderError translates a taxonomy error into the envelope. Anything
// outside the taxonomy is logged and surfaced as a generic internal error.
func (s *Server) renderError(c *gin.Context, err error) {
	var apiErr *models.Error
	if !errors.As(err, &apiErr) {
		s.log.Error().Err(err).
			Str(requestIDKey, c.GetString(requestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg("internal error")
		s.renderInternal(c)
		return
	}

	c.AbortWithStatusJSON(apiErr.HTTPStatus, errorEnvelope{Error: errorBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		RequestID: c.GetString(requestIDKey),
	}})
}

func (s *Server) renderInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorEnvelope{Error: errorBody{
		Code:      models.CodeInternalError,
		Message:   "An internal error occurred",
		RequestID: c.GetString(requestIDKey),
	}})
}

// renderBindingError maps a gin binding failure to VALIDATION_ERROR with the
// failed fields listed under details.errors.
func (s *Server) renderBindingError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		list := make([]map[string]any, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			list = append(list, map[string]any{
				"field": strings.ToLower(fe.Field()),
				"rule":  fe.Tag(),
			})
		}
		s.renderError(c, models.Validation("Request validation failed",
			map[string]any{"errors": list}))
		return
	}
	s.renderError(c, models.Validation("Invalid request body", nil))
}
