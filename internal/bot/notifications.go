package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// OrderCreated notifies the configured admins about a freshly created order.
// Implements order.Notifier.
func (b *Bot) OrderCreated(ctx context.Context, userID, orderID int64, summary string) {
	if len(b.cfg.AdminIDs) == 0 {
		b.logger.Warn("Admin notifications disabled - no admin IDs configured")
		return
	}

	text := fmt.Sprintf("📦 Новый заказ #%d\nTG-пользователь: %d\n\n%s", orderID, userID, summary)

	for _, adminID := range b.cfg.AdminIDs {
		if adminID == 0 {
			continue
		}
		msg := tgbotapi.NewMessage(adminID, text)
		if _, err := b.bot.Send(msg); err != nil {
			b.logger.Error("Failed to send admin notification",
				zap.Int64("admin_id", adminID),
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}
}
