package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mohammad-safakhou/gemsearch/models"
)

const (
	fallbackSearchMessage   = "An error occurred while processing your search"
	fallbackFollowUpMessage = "An error occurred while processing your follow-up question"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err, c.Request().URL.Path)

	req := c.Request()
	evt := log.Info()
	if code >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).
		Int("status", code).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("request failed")

	if req.Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Message: msg})
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}

func statusFor(err error, path string) (int, string) {
	var (
		ve  *models.ValidationError
		nf  *models.NotFoundError
		ue  *models.UpstreamError
		fe  *models.FormattingError
		he  *echo.HTTPError
		msg string
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Message
	case errors.As(err, &ue):
		msg = ue.Error()
	case errors.As(err, &fe):
		msg = fe.Error()
	case errors.As(err, &he):
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	}
	if msg == "" {
		msg = fallbackSearchMessage
		if path == followUpPath {
			msg = fallbackFollowUpMessage
		}
	}
	return http.StatusInternalServerError, msg
}
