package errcodes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is an Echo error handler that maps errors onto bare status
// responses. Feed readers choke on HTML error pages, so every failure is a
// status line and an empty body.
func (h *Handler) Handle(err error, c echo.Context) {
	if errutils.IsIgnorableErr(err) {
		logger.FromEchoContext(c).Err(err).Warn("broken pipe")
		return
	}

	httpCode := h.statusCode(err)

	// Internal server errors
	if httpCode == http.StatusInternalServerError {
		logger.FromEchoContext(c).Err(err).Error("server error")
	}

	if httpCode == http.StatusUnauthorized {
		c.Response().Header().Set("WWW-Authenticate", `Basic realm="TinyOPDS"`)
	}

	if err := c.NoContent(httpCode); err != nil {
		logger.FromEchoContext(c).Err(errors.WithStack(err)).Error("error handler write error")
	}
}

func (h *Handler) statusCode(err error) int {
	httpCode := http.StatusInternalServerError

	// Echo errors
	var he *echo.HTTPError
	if ok := errors.As(err, &he); ok {
		httpCode = he.Code
	}

	// Custom errors
	var e *Error
	if ok := errors.As(err, &e); ok {
		httpCode = e.HTTPCode
	}

	return httpCode
}
