package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"vaultbot/internal/adapter/repo"
	"vaultbot/internal/announce"
	"vaultbot/internal/http/handlers"
	httpapi "vaultbot/internal/http/httpapi"
	"vaultbot/internal/infra"
	"vaultbot/internal/metrics"
	"vaultbot/internal/poller"
	"vaultbot/internal/providers/paypal"
	"vaultbot/internal/providers/telegram"
	"vaultbot/internal/reconcile"
	"vaultbot/internal/vault"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, closeLedger, err := repo.OpenLedger(ctx, cfg, infra.Component(logger, "ledger"))
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.LedgerBackend).Msg("failed to open ledger")
	}
	defer closeLedger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tgLogger := infra.Component(logger, "telegram")
	bot, err := telegram.NewClient(telegram.Options{
		Token:   cfg.TelegramToken,
		BaseURL: cfg.TelegramBaseURL,
		Logger:  &tgLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure telegram client")
	}

	ppLogger := infra.Component(logger, "paypal")
	pp, err := paypal.NewClient(paypal.Options{
		ClientID:       cfg.PayPalClientID,
		Secret:         cfg.PayPalSecret,
		Mode:           cfg.PayPalMode,
		BaseURL:        cfg.PayPalBaseURL,
		Logger:         &ppLogger,
		RequestTimeout: cfg.PollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure paypal client")
	}

	tracker := reconcile.NewBalanceTracker()
	engine := reconcile.NewEngine(ledger, tracker)
	goals := vault.NewGoalState(cfg.VaultGoal, cfg.OwnerID, cfg.AuthorizedUsers)
	target := announce.Target{ChatID: cfg.TelegramChatID, ThreadID: cfg.TelegramTopicID}

	announcer := announce.NewAnnouncer(bot, target, tracker, goals, infra.Component(logger, "announce"))
	pipeline := reconcile.NewPipeline(engine, announcer, m, infra.Component(logger, "reconcile"))
	dispatcher := reconcile.NewDispatcher(pipeline, cfg.DispatchQueueSize, cfg.DispatchWorkers, infra.Component(logger, "dispatch"))
	poll := poller.New(pp, pipeline, engine, m, infra.Component(logger, "poller"), poller.Options{
		Interval:      cfg.PollInterval,
		InitialDelay:  cfg.PollInitialDelay,
		Lookback:      cfg.PollLookback,
		Timeout:       cfg.PollTimeout,
		Detection:     cfg.PollDetection,
		Currency:      cfg.PayPalCurrency,
		SeedFirstTick: cfg.PollSeedFirst,
	})

	loc, err := time.LoadLocation(cfg.GreetingTimezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.GreetingTimezone).Msg("unknown greeting timezone, using UTC")
		loc = time.UTC
	}
	cmdLogger := infra.Component(logger, "commands")
	commands := vault.NewCommands(goals, tracker, bot, vault.Options{
		Broadcast:    target,
		DonationLink: cfg.PayPalDonationLink,
		Location:     loc,
		Logger:       &cmdLogger,
	})

	app := &handlers.App{
		Logger:         infra.Component(logger, "http"),
		Donations:      dispatcher,
		Commands:       commands,
		Gatherer:       reg,
		TelegramSecret: cfg.TelegramWebhookSecret,
		SubmitTimeout:  5 * time.Second,
	}
	if cfg.PayPalWebhookID != "" {
		app.Verifier = pp
		app.WebhookID = cfg.PayPalWebhookID
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{Logger: logger, RateLimitPerMin: cfg.RateLimitPerMin})
	server := infra.NewHTTPServer(cfg, router)

	if cfg.TelegramWebhookURL != "" {
		if err := bot.SetWebhook(ctx, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
			logger.Warn().Err(err).Msg("failed to register telegram webhook")
		} else {
			logger.Info().Str("url", cfg.TelegramWebhookURL).Msg("telegram webhook registered")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return poll.Run(gctx) })
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("ledger", cfg.LedgerBackend).
			Str("detection", cfg.PollDetection).
			Msg("vaultbot listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("vaultbot stopped with error")
		closeLedger()
		os.Exit(1)
	}
	logger.Info().Msg("vaultbot stopped")
}
