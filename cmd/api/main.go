package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/chatcommerce/cmd/mainconfig"
	"github.com/wolfman30/chatcommerce/internal/api/router"
	"github.com/wolfman30/chatcommerce/internal/archive"
	"github.com/wolfman30/chatcommerce/internal/billing"
	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/catalog"
	appconfig "github.com/wolfman30/chatcommerce/internal/config"
	"github.com/wolfman30/chatcommerce/internal/conversation"
	"github.com/wolfman30/chatcommerce/internal/customers"
	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/internal/gating"
	"github.com/wolfman30/chatcommerce/internal/messaging"
	"github.com/wolfman30/chatcommerce/internal/messaging/whatsappclient"
	"github.com/wolfman30/chatcommerce/internal/notify"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/internal/orders"
	"github.com/wolfman30/chatcommerce/internal/replies"
	"github.com/wolfman30/chatcommerce/internal/triggers"
	"github.com/wolfman30/chatcommerce/internal/webhook"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatcommerce API server", "env", cfg.Env, "port", cfg.Port)

	if err := run(cfg, logger); err != nil {
		logger.Error("api server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.WhatsAppAppSecret == "" {
		return errors.New("WHATSAPP_APP_SECRET is required")
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(shutdownCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database/sql: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	redisClient := newRedisClient(cfg)
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(shutdownCtx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	llm, closeLLM, err := newLLMClient(shutdownCtx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	wa, err := whatsappclient.New(whatsappclient.Config{
		BaseURL:          cfg.WhatsAppGraphBaseURL,
		AccessToken:      cfg.WhatsAppAccessToken,
		OrderTemplate:    cfg.WhatsAppOrderTemplate,
		TemplateLanguage: cfg.WhatsAppTemplateLanguage,
		Timeout:          cfg.WhatsAppSendTimeout,
		MaxRetries:       cfg.WhatsAppSendMaxRetries,
	})
	if err != nil {
		return fmt.Errorf("whatsapp client: %w", err)
	}

	metricsHandler, webhookMetrics, commerceMetrics := setupMetrics()

	// Stores.
	messageStore := messaging.NewStore(pool)
	webhookLog := events.NewWebhookLogStore(pool)
	businessStore := business.NewStore(redisClient)
	customerStore := customers.NewStore(pool)
	catalogStore := catalog.NewStore(pool)
	triggerStore := triggers.NewStore(sqlDB)
	usage := billing.NewUsageStore(pool)
	subscriptions := billing.NewSubscriptionStore(pool)

	// Conversation pipeline.
	dispatcher := replies.NewDispatcher(wa, messageStore, usage, cfg.MaxTypingDelay, logger, commerceMetrics)
	resolver := replies.NewResolver(triggerStore, catalogStore,
		conversation.NewSalesGenerator(llm, ""), logger,
		replies.WithGenerationTimeout(cfg.GenerationTimeout))
	assembler := orders.NewAssembler(pool, catalogStore, customerStore, usage, dispatcher, orders.Config{
		Links: orders.Links{
			PublicBaseURL:      cfg.PublicBaseURL,
			PaymentLinkBaseURL: cfg.PaymentLinkBaseURL,
			UPIQRBaseURL:       cfg.UPIQRBaseURL,
		},
		TaxRateBPS: cfg.TaxRateBPS,
	}, logger, commerceMetrics).WithOwnerNotifier(notify.NewService(newEmailSender(cfg, awsCfg, logger), logger))
	machine := conversation.NewStateMachine(customerStore, conversation.NewLLMOrderExtractor(llm, ""),
		resolver, dispatcher, assembler, cfg.ExtractionTimeout, logger)

	var archiver webhook.Archiver
	if cfg.WebhookArchiveBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.AWSEndpointOverride != "" })
		archiver = archive.NewStore(s3Client, cfg.WebhookArchiveBucket, logger)
	}

	webhookHandler := webhook.NewHandler(webhook.Config{
		AppSecret:               cfg.WhatsAppAppSecret,
		VerifyToken:             cfg.WhatsAppVerifyToken,
		OnboardingPhoneNumberID: cfg.OnboardingPhoneNumberID,
		ProcessingTimeout:       cfg.WebhookProcessingDeadline,
	}, webhook.Deps{
		Log:       webhookLog,
		Ledger:    messaging.NewLedger(messageStore, logger, commerceMetrics),
		Business:  businessStore,
		Messages:  messageStore,
		Customers: customerStore,
		Locker:    customers.NewRedisLocker(redisClient, cfg.CustomerLockTTL),
		Gate:      gating.NewChain(subscriptions, usage, logger, commerceMetrics),
		Engine:    machine,
		Archiver:  archiver,
	}, shutdownCtx, logger, webhookMetrics)

	handler := router.New(&router.Config{
		Logger:          logger,
		Webhook:         webhookHandler,
		Triggers:        triggers.NewHandler(triggerStore, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		RateLimitRPS:    cfg.WebhookRateLimitRPS,
		RateLimitBurst:  cfg.WebhookRateLimitBurst,
		HealthChecks: map[string]router.Pinger{
			"postgres": pool,
			"redis":    redisPinger{redisClient},
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Replies wait out the typing delay before the provider gets its answer.
		WriteTimeout: cfg.WebhookProcessingDeadline + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func setupMetrics() (http.Handler, *metrics.WebhookMetrics, *metrics.CommerceMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewWebhookMetrics(reg), metrics.NewCommerceMetrics(reg)
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// newLLMClient builds the extraction and generation model client. The
// returned func releases it.
func newLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	switch cfg.LLMProvider {
	case "bedrock":
		if cfg.BedrockModelID == "" {
			return nil, nil, errors.New("BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		api := bedrockruntime.NewFromConfig(awsCfg)
		var client conversation.LLMClient = conversation.NewBedrockLLMClient(api, cfg.BedrockModelID)
		if cfg.BedrockFallbackModelID != "" {
			client = conversation.NewFallbackLLMClient(client, conversation.NewBedrockLLMClient(api, cfg.BedrockFallbackModelID), logger)
		}
		return client, func() {}, nil
	case "gemini", "":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// newEmailSender prefers SendGrid, then SES, then a logging stub.
func newEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger); sg != nil {
		return sg
	}
	if cfg.SESFromEmail != "" {
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.EmailFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}
