// Package httpapi HTTP API сервиса бронирования слотов.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BookingService операции, доступные через HTTP
type BookingService interface {
	PublishSlots(ctx context.Context, req service.PublishRequest, actor *model.User) ([]*model.Slot, error)
	BookSlot(ctx context.Context, slotID, teamID uuid.UUID, actor *model.User) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID, actor *model.User) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, actor *model.User) error
	DeleteSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) (int64, error)
	WithdrawSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) error
	ReopenSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) (*model.Slot, error)
	ListAvailableSlots(ctx context.Context, classroomID uuid.UUID, actor *model.User) (*service.Availability, error)
}

// Authenticator определяет пользователя по запросу
type Authenticator interface {
	VerifyActor(r *http.Request) (*model.User, error)
}

// RequestObserver метрики HTTP-запросов
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

type Config struct {
	Host string
	Port int
}

type Server struct {
	echo     *echo.Echo
	bookings BookingService
	auth     Authenticator
	logger   *zap.Logger
	config   *Config
}

// NewServer собирает echo с middleware и маршрутами.
// gatherer и observer могут быть nil, тогда /metrics не регистрируется.
func NewServer(
	bookings BookingService,
	auth Authenticator,
	observer RequestObserver,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
	cfg *Config,
) (*Server, error) {
	if bookings == nil {
		return nil, fmt.Errorf("booking service cannot be nil")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if observer != nil {
		e.Use(requestMetrics(observer))
	}

	s := &Server{
		echo:     e,
		bookings: bookings,
		auth:     auth,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes(gatherer)

	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	slots := s.echo.Group("/slots", s.authenticate)
	slots.POST("/publish", s.handlePublish)
	slots.POST("/book", s.handleBook)
	slots.POST("/delete", s.handleDelete)
	slots.POST("/withdraw", s.handleWithdraw)
	slots.POST("/reopen", s.handleReopen)
	slots.GET("/available/:classroomId", s.handleAvailable)

	bookings := s.echo.Group("/bookings", s.authenticate)
	bookings.POST("/cancel", s.handleCancel)
	bookings.GET("/:bookingId", s.handleGetBooking)
}

// Handler для httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}
