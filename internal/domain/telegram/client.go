package telegram

import "gopkg.in/telebot.v3"

// Client sends messages to a Telegram chat. The admin alerter depends on it
// instead of the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
