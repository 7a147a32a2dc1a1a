package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/access"
	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const actorKey = "actor"

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("HTTP request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	}
}

func requestMetrics(observer RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				status = he.Code
			}
			observer.ObserveRequest(c.Request().Method, c.Path(), status, time.Since(start))

			return err
		}
	}
}

// authenticate кладёт профиль пользователя в контекст запроса
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := s.auth.VerifyActor(c.Request())
		if err != nil {
			if errors.Is(err, access.ErrUnauthenticated) {
				return c.JSON(http.StatusUnauthorized, errorResponse{
					Success: false,
					Code:    codeUnauthenticated,
					Error:   "authentication required",
				})
			}

			s.logger.Error("Failed to verify actor", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, errorResponse{
				Success: false,
				Code:    "store_failure",
				Error:   "internal error",
			})
		}

		c.Set(actorKey, actor)
		return next(c)
	}
}

func actorFrom(c echo.Context) *model.User {
	actor, _ := c.Get(actorKey).(*model.User)
	return actor
}
