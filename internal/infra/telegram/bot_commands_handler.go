// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Привет, Администратор %s! Я слежу за отправкой недельных уведомлений. Используйте /help для списка команд.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Этот бот предназначен только для администратора агента уведомлений.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == adminTelegramID {
			return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send("Доступных команд для вас нет.")
	})
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Доступные команды Администратора:\n\n")
	helpText.WriteString("`/contracts`\n - Показать отслеживаемые контракты.\n\n")
	helpText.WriteString("`/contract <ID>`\n - Показать настройки контракта и отправленные уведомления.\n\n")
	helpText.WriteString("`/remove_contract <ID>`\n - Удалить контракт вместе с историей уведомлений.\n\n")
	helpText.WriteString("`/reset_contract <ID>`\n - Очистить историю уведомлений контракта, чтобы они пришли повторно.\n\n")
	helpText.WriteString("`/tick`\n - Запустить проверку уведомлений немедленно.\n\n")
	helpText.WriteString("`/help`\n - Показать это справочное сообщение.")
	return helpText.String()
}
