package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/auth"
	"github.com/dmoroni/uniteams/pkg/logger"
)

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			c.Set("logger", reqLogger)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware lets the request through when its bearer token carries
// one of the allowed roles.
func AuthMiddleware(roles ...auth.Role) echo.MiddlewareFunc {
	allowed := make(map[auth.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "missing bearer token"})
			}

			role, ok := auth.IsValidToken(token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			}
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"message": "insufficient role"})
			}

			return next(c)
		}
	}
}
