package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestRecorder receives one observation per handled request.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, seconds float64)
}

// NewTelemetry records request counts and latencies by route pattern.
// Requests that matched no route are recorded under "unmatched" so probing
// does not create a series per path.
func NewTelemetry(recorder RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" || path == "/*" {
				path = "unmatched"
			}

			statusCode := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					statusCode = he.Code
				} else {
					statusCode = http.StatusInternalServerError
				}
			}
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			recorder.RecordHTTPRequest(c.Request().Method, path, statusCode, time.Since(start).Seconds())
			return err
		}
	}
}
