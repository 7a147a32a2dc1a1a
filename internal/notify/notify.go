// Package notify рассылка событий журнала активности.
//
// Сервис публикует события в Dispatcher, который доставляет их в фоне.
// Ошибки доставки логируются и никогда не влияют на результат операции.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/review_scheduler/internal/model"
)

// Notifier получатель событий
type Notifier interface {
	Notify(ctx context.Context, activity model.Activity) error
}

// NotifierFunc адаптер функции к Notifier
type NotifierFunc func(ctx context.Context, activity model.Activity) error

func (f NotifierFunc) Notify(ctx context.Context, activity model.Activity) error {
	return f(ctx, activity)
}

// Named Notifier с именем для логов и метрик
type Named struct {
	Name     string
	Notifier Notifier
}

// Multi рассылает событие всем получателям.
// Падение одного получателя не мешает остальным.
type Multi []Named

func (m Multi) Notify(ctx context.Context, activity model.Activity) error {
	var errs []error
	for _, n := range m {
		if err := n.Notifier.Notify(ctx, activity); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}
