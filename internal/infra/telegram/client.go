// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"

	domaintelegram "week_notification_agent/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the specified recipient.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(recipientChatID), text, options)
	return err
}

// AdminAlerter pushes operational alerts to the administrator's chat.
type AdminAlerter struct {
	client  domaintelegram.Client
	adminID int64
}

func NewAdminAlerter(client domaintelegram.Client, adminID int64) *AdminAlerter {
	return &AdminAlerter{client: client, adminID: adminID}
}

// Alert sends text to the administrator. The telebot API has no context support,
// so ctx is only checked before sending.
func (a *AdminAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.client.SendMessage(a.adminID, "⚠️ "+text, nil); err != nil {
		return fmt.Errorf("failed to alert admin %d: %w", a.adminID, err)
	}
	return nil
}
