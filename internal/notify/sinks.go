package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"go.uber.org/zap"
)

// LogNotifier пишет события в лог
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, activity model.Activity) error {
	n.logger.Info("Activity",
		zap.String("type", string(activity.Type)),
		zap.String("actor_id", activity.ActorID.String()),
		zap.String("classroom_id", activity.ClassroomID.String()),
		zap.Any("details", activity.Details),
	)
	return nil
}

// ActivityStore журнал активности в хранилище
type ActivityStore interface {
	Create(ctx context.Context, activity *model.Activity) error
}

// StoreNotifier сохраняет события в activity_logs
type StoreNotifier struct {
	store ActivityStore
}

func NewStoreNotifier(store ActivityStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (n *StoreNotifier) Notify(ctx context.Context, activity model.Activity) error {
	return n.store.Create(ctx, &activity)
}

// Publisher публикация сообщения в subject, *nats.Conn подходит
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier публикует события в NATS в виде JSON
type NATSNotifier struct {
	conn    Publisher
	subject string
}

func NewNATSNotifier(conn Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subject}
}

// Notify публикует в "<subject>.<type>"
func (n *NATSNotifier) Notify(_ context.Context, activity model.Activity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	subject := n.subject + "." + string(activity.Type)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}
