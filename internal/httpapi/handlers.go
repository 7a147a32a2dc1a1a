package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

// handlePublish POST /slots/publish
func (s *Server) handlePublish(c echo.Context) error {
	var req service.PublishRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("Invalid publish request", zap.Error(err))
		return badRequest(c, "invalid request body")
	}

	slots, err := s.bookings.PublishSlots(c.Request().Context(), req, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, publishResponse{
		Success: true,
		Count:   len(slots),
		Slots:   toSlots(slots),
	})
}

// handleBook POST /slots/book
func (s *Server) handleBook(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("Invalid book request", zap.Error(err))
		return badRequest(c, "invalid request body")
	}

	booking, err := s.bookings.BookSlot(c.Request().Context(), req.SlotID, req.TeamID, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, bookingEnvelope{Success: true, Booking: toBooking(booking)})
}

// handleDelete POST /slots/delete
func (s *Server) handleDelete(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SlotID == uuid.Nil {
		return badRequest(c, "slotId is required")
	}

	removed, err := s.bookings.DeleteSlot(c.Request().Context(), req.SlotID, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, deleteResponse{Success: true, BookingsRemoved: removed})
}

// handleWithdraw POST /slots/withdraw
func (s *Server) handleWithdraw(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.bookings.WithdrawSlot(c.Request().Context(), req.SlotID, actorFrom(c)); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// handleReopen POST /slots/reopen
func (s *Server) handleReopen(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	slot, err := s.bookings.ReopenSlot(c.Request().Context(), req.SlotID, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, slotEnvelope{Success: true, Slot: toSlot(slot)})
}

// handleAvailable GET /slots/available/:classroomId
func (s *Server) handleAvailable(c echo.Context) error {
	classroomID, err := uuid.Parse(c.Param("classroomId"))
	if err != nil {
		return badRequest(c, "invalid classroomId")
	}

	availability, err := s.bookings.ListAvailableSlots(c.Request().Context(), classroomID, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, toAvailability(availability))
}

// handleCancel POST /bookings/cancel
func (s *Server) handleCancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.bookings.CancelBooking(c.Request().Context(), req.BookingID, actorFrom(c)); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// handleGetBooking GET /bookings/:bookingId
func (s *Server) handleGetBooking(c echo.Context) error {
	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		return badRequest(c, "invalid bookingId")
	}

	booking, err := s.bookings.GetBooking(c.Request().Context(), bookingID, actorFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, bookingEnvelope{Success: true, Booking: toBooking(booking)})
}
