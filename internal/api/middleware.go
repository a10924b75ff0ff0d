package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

// LoggingMiddleware creates a middleware function that logs API requests.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			// Process the request
			err := next(ctx)

			// Skip logging if apiLogger is not initialized
			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			// Log with LogAttrs to avoid allocations when the level is
			// disabled.
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts, latencies and response sizes per
// route template.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			// ctx.Path() is the route template, keeping label cardinality
			// bounded regardless of path parameters.
			method := ctx.Request().Method
			path := ctx.Path()
			status := ctx.Response().Status

			c.metrics.HTTP.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			c.metrics.HTTP.RecordHTTPResponseSize(method, path, ctx.Response().Size)
			if err != nil {
				c.metrics.HTTP.RecordHTTPRequestError(method, path, "handler")
			}

			return err
		}
	}
}

// RateLimitMiddleware throttles the routes it is attached to with the shared
// token bucket. A nil limiter (rate limiting disabled) passes everything.
func (c *Controller) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.uploadLimiter != nil && !c.uploadLimiter.Allow() {
				err := errors.Newf("request rate limit exceeded").
					Component("api").
					Category(errors.CategoryHTTP).
					Context("path", ctx.Path()).
					Build()
				return c.HandleError(ctx, err, "Too many requests", http.StatusTooManyRequests)
			}
			return next(ctx)
		}
	}
}

// corsMiddleware builds the CORS policy for the annotation UI. The default
// allows the Vite dev server only.
func corsMiddleware(settings *conf.Settings) echo.MiddlewareFunc {
	origins := settings.WebServer.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigin}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	})
}
