package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"printbot/internal/order"
)

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "start":
		b.handleStart(chatID)
	case "order":
		b.startOrder(ctx, chatID)
	case "cancel":
		b.dispatch(ctx, chatID, order.Event{UserID: chatID, Kind: order.EventCancel})
	case "help":
		b.handleHelp(chatID)
	default:
		b.handleUnknownCommand(chatID)
	}
}

func (b *Bot) handleStart(chatID int64) {
	text := `Привет! 👋

Я помогу оформить заказ на 3D-печать: выберем услугу, соберём контакты,
загрузим модели и подберём параметры печати.

Нажмите кнопку ниже, чтобы начать 👇`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛍️ Оформить заказ", order.ChoiceStartOrder),
		),
	)
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send start message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

func (b *Bot) handleHelp(chatID int64) {
	helpText := `Доступные команды:
	/order - Оформить новый заказ
	/cancel - Отменить текущий заказ
	/help - Показать эту справку

	Если у вас возникли проблемы, свяжитесь с поддержкой.`
	b.sendText(chatID, helpText)
}

func (b *Bot) handleUnknownCommand(chatID int64) {
	b.sendText(chatID, "Неизвестная команда. Используйте /order для оформления заказа.")
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}
