package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier defines the interface for a Telegram notifier.
type Notifier interface {
	SendMessageUser(text string, chatID int64) error
}

// client is an implementation of Notifier.
type client struct {
	bot *tgbotapi.BotAPI
}

// NewClient creates a new Telegram notifier client.
func NewClient(botToken string) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{
		bot: bot,
	}, nil
}

// SendMessageUser sends a message to the given Telegram chat.
func (c *client) SendMessageUser(text string, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := c.bot.Send(msg)
	return err
}
