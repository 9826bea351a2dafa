package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"printbot/internal/config"
	"printbot/internal/order"
)

// updateShards is the number of update workers. Every chat maps to exactly one
// worker, so events of one user are handled in the order Telegram delivered
// them while different users still run in parallel.
const updateShards = 16

func shardFor(chatID int64) int {
	return int(uint64(chatID) % updateShards)
}

// Bot adapts Telegram updates to order events and order responses back to
// messages with inline keyboards. All workflow logic lives in internal/order.
type Bot struct {
	bot        *tgbotapi.BotAPI
	logger     *zap.Logger
	orch       *order.Orchestrator
	cfg        *config.Config
	httpClient *http.Client
}

func New(cfg *config.Config, orch *order.Orchestrator, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	return &Bot{
		bot:    botAPI,
		logger: logger,
		orch:   orch,
		cfg:    cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPRequestTimeout,
		},
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	shards := make([]chan tgbotapi.Update, updateShards)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 64)
		wg.Add(1)
		go func(ch <-chan tgbotapi.Update) {
			defer wg.Done()
			for upd := range ch {
				b.handleUpdate(ctx, upd)
			}
		}(shards[i])
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			b.bot.StopReceivingUpdates()
			for _, ch := range shards {
				close(ch)
			}
			wg.Wait()
			return nil

		case update := <-updates:
			chatID, ok := updateChatID(update)
			if !ok {
				continue
			}
			shards[shardFor(chatID)] <- update
		}
	}
}

// updateChatID extracts the chat the update belongs to. Updates without a chat
// (polls, channel posts) are not part of the order flow and are skipped.
func updateChatID(u tgbotapi.Update) (int64, bool) {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.processMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.processCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.logger.Debug("Processing message",
		zap.Int64("chat_id", chatID),
		zap.String("text", msg.Text))

	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, msg.Command())
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, chatID, msg.Document)
		return
	}

	b.dispatch(ctx, chatID, order.Event{
		UserID: chatID,
		Kind:   order.EventText,
		Text:   msg.Text,
	})
}

func (b *Bot) processCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	b.logger.Debug("Processing callback",
		zap.Int64("chat_id", chatID),
		zap.String("data", data))

	if _, err := b.bot.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}

	ev := order.Event{UserID: chatID}
	switch data {
	case order.ChoiceStartOrder:
		b.startOrder(ctx, chatID)
		return
	case order.ChoiceBack:
		ev.Kind = order.EventBack
	case order.ChoiceConfirm:
		ev.Kind = order.EventConfirm
	case order.ChoiceCancel:
		ev.Kind = order.EventCancel
	default:
		ev.Kind = order.EventChoice
		ev.Choice = data
	}

	b.dispatch(ctx, chatID, ev)
}

func (b *Bot) startOrder(ctx context.Context, chatID int64) {
	resp, err := b.orch.StartOrder(ctx, chatID)
	if err != nil {
		b.logger.Warn("Start order failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
	b.render(chatID, resp)
}

func (b *Bot) dispatch(ctx context.Context, chatID int64, ev order.Event) {
	resp, err := b.orch.HandleEvent(ctx, ev)
	if err != nil {
		b.logger.Warn("Event rejected",
			zap.Int64("chat_id", chatID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
	b.render(chatID, resp)
}

func (b *Bot) render(chatID int64, resp order.Response) {
	if resp.Text == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, resp.Text)
	if len(resp.Choices) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(resp.Choices))
		for _, c := range resp.Choices {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(c.Label, c.ID),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}
