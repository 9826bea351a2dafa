package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"printbot/internal/bot"
	"printbot/internal/config"
	"printbot/internal/order"
	"printbot/pkg/api"
	"printbot/pkg/logger"
)

// ENTRY POINT

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.HTTPRequestTimeout, zapLogger)

	store := order.NewStore(cfg.SessionTTL, zapLogger)
	machine := order.NewMachine(zapLogger)
	orch := order.NewOrchestrator(store, machine, apiClient, zapLogger)

	tgBot, err := bot.New(cfg, orch, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create bot", zap.Error(err))
	}
	orch.SetNotifier(tgBot)

	// Periodic sweep backs up the lazy per-access expiry.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), func() {
		store.SweepExpired(time.Now())
	}); err != nil {
		zapLogger.Fatal("Failed to schedule session sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := tgBot.Start(ctx); err != nil {
		zapLogger.Fatal("Bot stopped with error", zap.Error(err))
	}

	zapLogger.Info("Bot shutdown gracefully")
}
