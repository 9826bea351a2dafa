package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateChatID(t *testing.T) {
	msg := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}}}
	id, ok := updateChatID(msg)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	cb := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100500}},
	}}
	id, ok = updateChatID(cb)
	require.True(t, ok)
	assert.Equal(t, int64(-100500), id)

	_, ok = updateChatID(tgbotapi.Update{})
	assert.False(t, ok, "updates without a chat are skipped")
}

func TestShardFor_StablePerChat(t *testing.T) {
	// Same chat always lands on the same worker; that is what keeps one
	// user's events in delivery order.
	assert.Equal(t, shardFor(42), shardFor(42))
	assert.Equal(t, shardFor(-100500), shardFor(-100500))

	for id := int64(-3); id <= 3; id++ {
		s := shardFor(id)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, updateShards)
	}
}
