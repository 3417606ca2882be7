package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"week_notification_agent/internal/app"
	"week_notification_agent/internal/infra/config"
	"week_notification_agent/internal/infra/httpapi"
	"week_notification_agent/internal/infra/logger"
	"week_notification_agent/internal/infra/scheduler"
	"week_notification_agent/internal/infra/seed"
	"week_notification_agent/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP agent, the reconciliation scheduler and the optional admin bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, mainLogger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	mainLogger.Info("Database connection established and schema applied.")

	if cfg.SeedFile != "" {
		n, err := seed.Apply(ctx, rt.notifications, cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("could not load notification catalog: %w", err)
		}
		mainLogger.WithField("rules", n).Info("Notification catalog loaded from seed file.")
	}

	var (
		bot     *telebot.Bot
		alerter scheduler.Alerter
	)
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg)
		if err != nil {
			return err
		}
		alerter = telegram.NewAdminAlerter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
	}

	notifScheduler := scheduler.NewNotificationScheduler(
		rt.dispatcher,
		rt.lease,
		alerter,
		logger.Component("scheduler"),
		cfg.CronSpecTick,
		cfg.TickTimeout,
		cfg.TimeZone,
	)
	contractService := app.NewContractService(rt.contracts, rt.notifications, rt.locks, notifScheduler, logger.Component("contract_service"))
	contractService.InLocation(cfg.TimeZone)

	if bot != nil {
		telegramLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, telegramLogger)
		telegram.RegisterAdminHandlers(ctx, bot, contractService, notifScheduler, cfg.AdminTelegramID, telegramLogger)
		mainLogger.Info("Admin command handlers registered.")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.RouterConfig{
		AgentHandler:   httpapi.NewAgentHandler(contractService, cfg.AgentAPIKey, logger.Component("http")),
		MetricsHandler: rt.metrics.Handler(),
		AllowOrigins:   cfg.CORSOrigins,
		Logger:         logger.Component("http"),
	})
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	if err := notifScheduler.Start(); err != nil {
		return err
	}
	notifScheduler.Trigger() // Catch up on anything that became due while stopped

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			mainLogger.Info("Telegram admin bot started.")
			bot.Start() // Blocks until bot.Stop
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		mainLogger.Info("Shutting down application...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if bot != nil {
			bot.Stop()
		}
		notifScheduler.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	mainLogger.Info("Application shut down gracefully.")
	return nil
}

func newBot(cfg *config.AppConfig) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"text":      c.Text(),
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

// Main runs the root command and exits the process on failure.
func Main() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
