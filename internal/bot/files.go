package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"printbot/internal/order"
)

// handleDocument turns an attached document into a file event. The bytes are
// downloaded from Telegram only after the metadata passes validation, so
// oversized and wrong-format files never hit the network twice.
func (b *Bot) handleDocument(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	ev := order.Event{
		UserID: chatID,
		Kind:   order.EventFile,
		File: &order.FileRef{
			Name: doc.FileName,
			Size: int64(doc.FileSize),
		},
	}

	if err := order.ValidateFileMeta(doc.FileName, int64(doc.FileSize)); err == nil {
		data, derr := b.downloadDocument(ctx, doc)
		if derr != nil {
			b.logger.Error("Failed to download document",
				zap.Int64("chat_id", chatID),
				zap.String("filename", doc.FileName),
				zap.Error(derr))
			b.sendText(chatID, "⚠️ Не удалось получить файл из Telegram. Попробуйте отправить его ещё раз.")
			return
		}
		ev.File.Data = data
	}

	b.dispatch(ctx, chatID, ev)
}

func (b *Bot) downloadDocument(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	url, err := b.bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, order.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > order.MaxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", order.MaxFileSize)
	}
	return data, nil
}
