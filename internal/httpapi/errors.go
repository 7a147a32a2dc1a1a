package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const codeUnauthenticated = "unauthenticated"

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// statusOf HTTP-статус для вида ошибки сервиса
func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput, service.KindDuplicateStageBooking:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindSlotUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает ошибкой сервиса. Детали сбоев хранилища только в логе.
func (s *Server) writeError(c echo.Context, err error) error {
	kind := service.KindOf(err)
	status := statusOf(kind)

	message := service.MessageOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		message = "internal error"
	}

	return c.JSON(status, errorResponse{
		Success: false,
		Code:    string(kind),
		Error:   message,
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{
		Success: false,
		Code:    string(service.KindInvalidInput),
		Error:   message,
	})
}
