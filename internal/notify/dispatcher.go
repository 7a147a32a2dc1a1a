package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"go.uber.org/zap"
)

const (
	defaultBuffer  = 256
	deliverTimeout = 10 * time.Second
)

// Metrics счётчики доставки
type Metrics interface {
	NotificationDropped()
	NotificationFailed()
	NotificationDelivered()
}

type nopMetrics struct{}

func (nopMetrics) NotificationDropped()   {}
func (nopMetrics) NotificationFailed()    {}
func (nopMetrics) NotificationDelivered() {}

// Dispatcher очередь событий с одним фоновым воркером.
// Publish не блокирует: при переполнении событие отбрасывается.
type Dispatcher struct {
	notifier Notifier
	queue    chan model.Activity
	done     chan struct{}
	metrics  Metrics
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(notifier Notifier, buffer int, metrics Metrics, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		notifier: notifier,
		queue:    make(chan model.Activity, buffer),
		done:     make(chan struct{}),
		metrics:  metrics,
		logger:   logger,
	}
	go d.run()

	return d
}

// Publish ставит событие в очередь
func (d *Dispatcher) Publish(activity model.Activity) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(activity, "dispatcher closed")
		return
	}

	select {
	case d.queue <- activity:
	default:
		d.drop(activity, "queue full")
	}
}

func (d *Dispatcher) drop(activity model.Activity, reason string) {
	d.metrics.NotificationDropped()
	d.logger.Warn("Activity dropped",
		zap.String("type", string(activity.Type)),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for activity := range d.queue {
		d.deliver(activity)
	}
}

func (d *Dispatcher) deliver(activity model.Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, activity); err != nil {
		d.metrics.NotificationFailed()
		d.logger.Warn("Failed to deliver activity",
			zap.String("type", string(activity.Type)),
			zap.String("classroom_id", activity.ClassroomID.String()),
			zap.Error(err),
		)
		return
	}

	d.metrics.NotificationDelivered()
}

// Close перестаёт принимать события и ждёт, пока очередь будет доставлена
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
