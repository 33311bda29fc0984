package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/middleware"
	"tradejournal/internal/usecase"
)

// Response represents a standardized API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// SuccessResponse sends a success response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// SuccessMessageResponse sends a success response with a message
func SuccessMessageResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c echo.Context, statusCode int, message string, err interface{}) error {
	return c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Error:   err,
	})
}

// MalformedInput is the error detail of a 400 for an unparseable body
type MalformedInput struct {
	Received string `json:"received"`
}

// StatusFor maps an error to its HTTP status and the generic message shown to callers
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest, "Malformed JSON payload"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "Payload too large"
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusUnauthorized, "Missing credentials"
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// NewErrorHandler renders every error returned by a handler in the Response envelope.
// Server faults are logged with their cause and never echoed.
func NewErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var redir *middleware.PageRedirect
		if errors.As(err, &redir) {
			if err := c.Redirect(http.StatusFound, redir.Target); err != nil {
				logger.WithError(err).Warn("Failed to write redirect")
			}
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			message := http.StatusText(httpErr.Code)
			if m, ok := httpErr.Message.(string); ok && m != "" {
				message = m
			}
			if httpErr.Code >= http.StatusInternalServerError {
				logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
			}
			writeError(c, logger, httpErr.Code, message, nil)
			return
		}

		status, message := StatusFor(err)
		var detail interface{}
		switch status {
		case http.StatusInternalServerError:
			logger.WithError(err).WithFields(logrus.Fields{
				"path":       c.Path(),
				"method":     c.Request().Method,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Error("Request failed upstream")
		case http.StatusBadRequest:
			detail = badRequestDetail(err)
		}
		writeError(c, logger, status, message, detail)
	}
}

func writeError(c echo.Context, logger logrus.FieldLogger, status int, message string, detail interface{}) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = ErrorResponse(c, status, message, detail)
	}
	if err != nil {
		logger.WithError(err).Warn("Failed to write error response")
	}
}

// badRequestDetail echoes a bounded prefix of malformed input, or the field errors of a validation failure
func badRequestDetail(err error) interface{} {
	var rej *identity.Rejection
	if errors.As(err, &rej) && rej.Received != "" {
		return MalformedInput{Received: rej.Received}
	}
	var stage *usecase.StageError
	if errors.As(err, &stage) && stage.Received != "" {
		return MalformedInput{Received: stage.Received}
	}
	if errors.Is(err, domain.ErrValidation) {
		return validationDetail(err)
	}
	return nil
}

// validationDetail strips wrapping so only the field list produced by the validator remains
func validationDetail(err error) string {
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
