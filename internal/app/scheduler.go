package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredSweeper снимает свободные слоты с истёкшим дедлайном
type ExpiredSweeper interface {
	WithdrawExpired(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	sweeper  ExpiredSweeper
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(sweeper ExpiredSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run выполняет задачи до отмены ctx или вызова Stop
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	// Первый запуск сразу при старте
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Expired slot sweep stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Expired slot sweep cancelled")
			return
		}
	}
}

// Start запускает Run в отдельной горутине
func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

func (s *Scheduler) sweep(ctx context.Context) {
	count, err := s.sweeper.WithdrawExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to withdraw expired slots", zap.Error(err))
		return
	}

	s.logger.Debug("Expired slot sweep completed", zap.Int64("withdrawn", count))
}
