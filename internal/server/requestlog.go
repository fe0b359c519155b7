package server

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const (
	startKey        = "request_start"
	maxLogLineRunes = 80
)

func stampStart(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(startKey, time.Now())
		return next(c)
	}
}

// requestLog writes one line per /api request with the JSON it answered.
func requestLog() echo.MiddlewareFunc {
	return middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool { return !isAPI(c.Request().URL.Path) },
		Handler: func(c echo.Context, _ []byte, resBody []byte) {
			var took time.Duration
			if start, ok := c.Get(startKey).(time.Time); ok {
				took = time.Since(start)
			}
			req := c.Request()
			var body []byte
			if strings.HasPrefix(c.Response().Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
				body = resBody
			}
			log.Info().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg(requestLogLine(req.Method, req.URL.Path, c.Response().Status, took, body))
		},
	})
}

// requestLogLine renders "METHOD path status in Nms :: body", cut to
// maxLogLineRunes with a trailing ellipsis.
func requestLogLine(method, path string, status int, took time.Duration, body []byte) string {
	line := fmt.Sprintf("%s %s %d in %dms", method, path, status, took.Milliseconds())
	if body = bytes.TrimSpace(body); len(body) > 0 {
		line += " :: " + string(body)
	}
	if utf8.RuneCountInString(line) > maxLogLineRunes {
		runes := []rune(line)
		line = string(runes[:maxLogLineRunes-1]) + "…"
	}
	return line
}
