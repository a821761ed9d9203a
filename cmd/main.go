package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lyrahub/internal/api"
	"lyrahub/internal/ask"
	"lyrahub/internal/auth"
	"lyrahub/internal/config"
	"lyrahub/internal/database"
	"lyrahub/internal/digest"
	"lyrahub/internal/feed"
	"lyrahub/internal/mailer"
	"lyrahub/internal/ratelimiter"
	"lyrahub/internal/scheduler"
	"lyrahub/internal/summarizer"
)

const (
	readHeaderTimeout = 10 * time.Second
	outboundTimeout   = 30 * time.Second
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load sources",
			"error", err,
			"sourcesFile", cfg.SourcesFile)

		return
	}
	log.InfoContext(ctx, "Sources are loaded",
		"sourceCount", len(sources.Sources),
		"keywordCount", len(sources.Keywords))

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	authorizer, err := auth.NewAuthorizer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize authorizer",
			"error", err,
			"envVar", "JWT_SECRET")

		return
	}

	httpClient := &http.Client{Timeout: outboundTimeout}
	github := feed.NewGitHubClient(httpClient, cfg.GitHubToken, log)

	fetcher := feed.NewFetcher(feed.FetcherOptions{
		HTTPClient: httpClient,
		GitHub:     github,
		Keywords:   sources.Keywords,
		Timeout:    cfg.FetchTimeout,
	}, log)

	openAI := initOpenAI(ctx, cfg.OpenAIAPIKey, log)

	var (
		sum       summarizer.Summarizer
		completer summarizer.Completer
	)
	if openAI != nil {
		sum, completer = openAI, openAI
	}

	sender := initSender(ctx, cfg, log)

	pipeline := digest.New(db, fetcher, sum, sender, digest.Options{
		Sources:           sources.Sources,
		TopN:              cfg.DigestTopN,
		Window:            cfg.DigestWindow,
		TargetLang:        cfg.DigestTargetLang,
		SiteURL:           cfg.SiteURL,
		UnsubscribeSecret: cfg.UnsubscribeSecret,
		SummaryTimeout:    cfg.SummaryTimeout,
		SendTimeout:       cfg.SendTimeout,
	}, log)

	asker := ask.NewService(ask.Options{
		Store:     db,
		Online:    ask.NewOnlineSearcher(httpClient, log),
		Repos:     github,
		Fetcher:   fetcher,
		Sources:   sources.Sources,
		Completer: completer,
		Keywords:  sources.Keywords,
	}, log)

	if cfg.CronSecret == "" {
		log.WarnContext(ctx, "CRON_SECRET is missing so the cron endpoint rejects every call",
			"envVar", "CRON_SECRET")
	}

	server := api.NewServer(db, authorizer, pipeline, asker, api.Options{
		CronSecret:         cfg.CronSecret,
		UnsubscribeSecret:  cfg.UnsubscribeSecret,
		CORSOrigins:        cfg.CORSOrigins,
		DigestTimeout:      cfg.DigestRunTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, log)

	if cfg.DigestCron != "" {
		sched := scheduler.New(ctx, pipeline, cfg.DigestCron, cfg.DigestRunTimeout, log)

		if err = sched.Start(); err != nil {
			log.ErrorContext(ctx, "Failed to start scheduler",
				"error", err,
				"spec", cfg.DigestCron,
				"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

			return
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", cfg.DigestCron,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	log.InfoContext(ctx, "HTTP server is started",
		"listenAddr", cfg.ListenAddr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "HTTP server failed",
				"error", err,
				"listenAddr", cfg.ListenAddr)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", err)
	}

	log.InfoContext(shutdownCtx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initOpenAI(ctx context.Context, apiKey string, log *slog.Logger) *summarizer.OpenAISummarizer {
	if apiKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so summaries and answers are disabled",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(apiKey)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so summaries and answers are disabled",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return s
}

func initSender(ctx context.Context, cfg config.Config, log *slog.Logger) mailer.Sender {
	if !cfg.SMTP.Enabled() {
		log.WarnContext(ctx, "SMTP is not configured so digest mails will fail",
			"envVar", "SMTP_HOST")
	}

	smtpSender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLS:      cfg.SMTP.TLS,
	}, log)

	return ratelimiter.New(smtpSender, cfg.MailRatePerSecond, log)
}
