package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// Telegram допускает около 20 сообщений в минуту в одну группу
const (
	telegramRate  = rate.Limit(1.0 / 3)
	telegramBurst = 5
)

// MessageSender отправка сообщений, *bot.Bot подходит
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет события в чат
type TelegramNotifier struct {
	sender  MessageSender
	chatID  int64
	limiter *rate.Limiter
}

func NewTelegramNotifier(sender MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		chatID:  chatID,
		limiter: rate.NewLimiter(telegramRate, telegramBurst),
	}
}

// NewTelegramBot создаёт клиента без обращения к getMe при старте
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, activity model.Activity) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      FormatActivity(activity),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

var activityTitles = map[model.ActivityType]string{
	model.ActivitySlotsPublished:   "📅 Опубликованы слоты",
	model.ActivitySlotBooked:       "✅ Слот забронирован",
	model.ActivityBookingCancelled: "❌ Бронь отменена",
	model.ActivitySlotDeleted:      "🗑 Слот удалён",
	model.ActivitySlotWithdrawn:    "⏸ Слот снят с публикации",
	model.ActivitySlotReopened:     "▶️ Слот снова открыт",
}

// FormatActivity HTML-текст события для чата
func FormatActivity(activity model.Activity) string {
	title, ok := activityTitles[activity.Type]
	if !ok {
		title = string(activity.Type)
	}

	var sb strings.Builder
	sb.WriteString("<b>" + html.EscapeString(title) + "</b>\n")
	sb.WriteString(fmt.Sprintf("Класс: <code>%s</code>\n", activity.ClassroomID))

	keys := make([]string, 0, len(activity.Details))
	for k := range activity.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s: %s\n",
			html.EscapeString(k),
			html.EscapeString(fmt.Sprint(activity.Details[k])),
		))
	}

	return strings.TrimRight(sb.String(), "\n")
}
