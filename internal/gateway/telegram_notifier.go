package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// TelegramNotifier Telegram Bot APIを使用したNotifierの実装
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID string
}

// NewTelegramNotifier Telegram通知クライアントを作成
// apiEndpoint が空の場合は tgbotapi.APIEndpoint を使用する。作成時に getMe でトークンを検証する
func NewTelegramNotifier(botToken, chatID, apiEndpoint string, httpClient *http.Client) (*TelegramNotifier, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, apiEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("Telegram Botの初期化に失敗しました: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Style Telegram には HTML で送信する
func (n *TelegramNotifier) Style() domain.MessageStyle {
	return domain.StyleHTML
}

// Send 固定のチャットにメッセージを送信
func (n *TelegramNotifier) Send(_ context.Context, message string) error {
	msg := n.newMessage(message)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("Telegram APIへの送信に失敗しました: %w", err)
	}
	return nil
}

// newMessage 数値ならチャット ID、そうでなければ @channel 名として扱う
func (n *TelegramNotifier) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(n.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(n.chatID, text)
}
