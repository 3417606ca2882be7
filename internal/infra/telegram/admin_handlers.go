package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"week_notification_agent/internal/app"
	idb "week_notification_agent/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Ошибка: У вас нет прав для выполнения этой команды."

// RegisterAdminHandlers registers handlers for admin commands.
// Every command is answered only for the configured admin Telegram ID.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	contractService *app.ContractService,
	trigger app.TickTrigger,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	b.Handle("/contracts", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/contracts",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		status, err := contractService.Status(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to get tracked contracts")
			return c.Send(fmt.Sprintf("Произошла ошибка при получении списка контрактов: %s", err.Error()))
		}
		handlerLogger.WithField("contracts_count", len(status.TrackedContracts)).Info("Tracked contracts listed")
		return c.Send(formatStatus(status))
	})

	b.Handle("/contract", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/contract",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		args := c.Args()
		// Expected format: /contract <ContractID>
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /contract <ID контракта>")
		}

		details, err := contractService.Details(ctx, args[0])
		if err != nil {
			logWithError := handlerLogger.WithError(err).WithField("arg", args[0])
			switch {
			case errors.Is(err, app.ErrInvalidContractID):
				return c.Send("Ошибка: ID контракта должен быть положительным числом.")
			case errors.Is(err, idb.ErrContractNotFound):
				logWithError.Warn("Contract not found")
				return c.Send(fmt.Sprintf("Контракт %s не найден.", args[0]))
			default:
				logWithError.Error("Failed to get contract details")
				return c.Send(fmt.Sprintf("Произошла ошибка при получении контракта: %s", err.Error()))
			}
		}
		return c.Send(formatDetails(details))
	})

	b.Handle("/remove_contract", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/remove_contract",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		args := c.Args()
		// Expected format: /remove_contract <ContractID>
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /remove_contract <ID контракта>")
		}

		if err := contractService.Remove(ctx, args[0]); err != nil {
			if errors.Is(err, app.ErrInvalidContractID) {
				return c.Send("Ошибка: ID контракта должен быть положительным числом.")
			}
			handlerLogger.WithError(err).Error("Failed to remove contract")
			return c.Send(fmt.Sprintf("Произошла ошибка при удалении контракта: %s", err.Error()))
		}
		handlerLogger.WithField("contract_id", args[0]).Info("Contract removed by admin")
		return c.Send(fmt.Sprintf("Контракт %s и история его уведомлений удалены.", args[0]))
	})

	b.Handle("/reset_contract", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reset_contract",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		args := c.Args()
		// Expected format: /reset_contract <ContractID>
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /reset_contract <ID контракта>")
		}

		if err := contractService.ResetDeliveries(ctx, args[0]); err != nil {
			switch {
			case errors.Is(err, app.ErrInvalidContractID):
				return c.Send("Ошибка: ID контракта должен быть положительным числом.")
			case errors.Is(err, idb.ErrContractNotFound):
				return c.Send(fmt.Sprintf("Контракт %s не найден.", args[0]))
			default:
				handlerLogger.WithError(err).Error("Failed to reset contract deliveries")
				return c.Send(fmt.Sprintf("Произошла ошибка при сбросе истории уведомлений: %s", err.Error()))
			}
		}
		trigger.Trigger()
		handlerLogger.WithField("contract_id", args[0]).Info("Contract deliveries reset by admin")
		return c.Send(fmt.Sprintf("История уведомлений контракта %s очищена, наступившие уведомления будут отправлены повторно.", args[0]))
	})

	b.Handle("/tick", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/tick",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedReply)
		}

		trigger.Trigger()
		handlerLogger.Info("Reconciliation requested by admin")
		return c.Send("Проверка уведомлений запущена.")
	})
}

func formatStatus(status *app.Status) string {
	if len(status.TrackedContracts) == 0 {
		return "Отслеживаемых контрактов нет."
	}
	ids := make([]string, 0, len(status.TrackedContracts))
	for _, id := range status.TrackedContracts {
		ids = append(ids, fmt.Sprintf("%d", id))
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("---	Контракты (%d)	---\n", len(ids)))
	response.WriteString(strings.Join(ids, ", "))
	return response.String()
}

func formatDetails(details *app.ContractDetails) string {
	c := details.Contract

	start := "не задана"
	if c.StartDate.Valid {
		start = c.StartDate.Time.Format("2006-01-02")
	}
	presets := c.Presets.String()
	if presets == "" {
		presets = "нет"
	}
	state := "Неактивен"
	if c.IsActive() {
		state = "Активен"
	}
	delivered := "нет"
	if len(details.Delivered) > 0 {
		ids := make([]string, 0, len(details.Delivered))
		for _, id := range details.Delivered {
			ids = append(ids, fmt.Sprintf("%d", id))
		}
		delivered = strings.Join(ids, ", ")
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Контракт %d\n", c.ID))
	response.WriteString(fmt.Sprintf("Статус: %s\n", state))
	response.WriteString(fmt.Sprintf("Дата начала: %s\n", start))
	response.WriteString(fmt.Sprintf("Сценарии: %s\n", presets))
	response.WriteString(fmt.Sprintf("Отправленные уведомления: %s", delivered))
	return response.String()
}
