package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"promoHub/pkg/logger"
	jsonres "promoHub/pkg/response"
)

// ErrorHandler renders errors that escape handlers in the common envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		logger.Error("Unhandled error", "path", c.Path(), "error", err)
	}

	var body jsonres.ErrorBody
	switch code {
	case http.StatusBadRequest:
		body = jsonres.Error(jsonres.CodeBadRequest, message, nil)
	case http.StatusUnauthorized:
		body = jsonres.Error(jsonres.CodeUnauthorized, message, nil)
	case http.StatusForbidden:
		body = jsonres.Error(jsonres.CodeForbidden, message, nil)
	case http.StatusNotFound:
		body = jsonres.Error(jsonres.CodeNotFound, message, nil)
	case http.StatusTooManyRequests:
		body = jsonres.Error(jsonres.CodeTooMany, message, nil)
	default:
		if code < 500 {
			body = jsonres.Error(http.StatusText(code), message, nil)
		} else {
			body = jsonres.Error(jsonres.CodeInternal, "internal server error", nil)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		logger.Error("Failed to write error response", "error", err)
	}
}
