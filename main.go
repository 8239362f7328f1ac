package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cardpresent/config"
	"cardpresent/cron"
	"cardpresent/database"
	attemptsRepo "cardpresent/database/repository/attempts"
	"cardpresent/handlers"
	"cardpresent/middleware"
	"cardpresent/models"
	"cardpresent/routes"
	"cardpresent/services/commerce"
	"cardpresent/services/configuration"
	"cardpresent/services/eligibility"
	"cardpresent/services/events"
	"cardpresent/services/payments"
	"cardpresent/services/stripeterminal"
	"cardpresent/services/tasks"
	"cardpresent/services/terminal"
	"cardpresent/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	utils.SetJWTSecret(cfg.JWTSecret)
	database.InitDB()
	utils.InitCache()
	utils.InitAuthCache()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// repositories.
	attempts := attemptsRepo.NewMongoAttemptRepo()
	if err := attempts.EnsureIndexes(rootCtx); err != nil {
		logger.Warn("main: failed to ensure attempt indexes", zap.Error(err))
	}

	// card reader and payment backend.
	sc := stripeterminal.NewClient(cfg.StripeKey)
	backend := stripeterminal.NewBackend(sc, cfg.StripeConnectedAccount, logger)
	registry := stripeterminal.NewRedisRegistry(utils.GetCacheClient(), cfg.StripeLocationID)
	reader := stripeterminal.NewReaderAdapter(sc, registry, cfg.StripeLocationID, cfg.StripeConnectedAccount, cfg.ReaderPollInterval, logger)
	lock := terminal.NewRedisReaderLock(utils.GetCacheClient(), cfg.ReaderLockTTL, logger)

	// configuration and eligibility.
	resolver := configuration.NewResolver()
	configProvider := func() (models.CardPresentPaymentsConfiguration, error) {
		return resolver.Resolve(cfg.StoreCountry, cfg.StripeGatewayEnabled, cfg.CanadaEnabled)
	}
	commerceClient := commerce.NewClient(cfg.CommerceAPIURL, cfg.CommerceAPIToken, cfg.CommerceAPITimeout)
	gate := eligibility.NewGate(commerceClient, cfg.EligibilityTimeout, logger)
	dispatcher := eligibility.NewDispatcher(gate)
	defer dispatcher.Close()

	// deferred intent cancellation.
	queue := asynq.NewClient(cron.RedisOpt())
	defer queue.Close()
	worker := cron.InitIntentCancelWorker(backend, logger)
	defer worker.Shutdown()

	// transition observers.
	metrics := utils.NewPaymentMetrics(prometheus.DefaultRegisterer)
	observers := []payments.Observer{metrics}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	session, err := payments.NewOrchestrator(payments.Options{
		Configuration: configProvider,
		Eligibility:   gate,
		Reader:        reader,
		Backend:       backend,
		Lock:          lock,
		Recorder:      attempts,
		Observers:     observers,
		Cancels:       tasks.NewCancelScheduler(queue, 0),
		Currency: models.CurrencySettings{
			Code:              strings.ToUpper(cfg.StoreCurrency),
			Position:          models.CurrencyPosition(cfg.CurrencyPosition),
			ThousandSeparator: cfg.ThousandSeparator,
			DecimalSeparator:  cfg.DecimalSeparator,
			Decimals:          cfg.CurrencyDecimals,
		},
		Timeouts: payments.Timeouts{
			Eligibility: cfg.EligibilityTimeout,
			Discovery:   cfg.DiscoveryTimeout,
			Connect:     cfg.ConnectTimeout,
			Collect:     cfg.CollectTimeout,
			Process:     cfg.ProcessTimeout,
			Cleanup:     cfg.CleanupTimeout,
		},
		Retry: payments.RetryPolicy{
			MaxRetries:      cfg.ConnectMaxRetries,
			InitialInterval: cfg.ConnectRetryInterval,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Sugar().Fatalf("main: failed to build payment session: %v", err)
	}

	utils.StartHealthMonitor(rootCtx, 30*time.Second,
		[]*redis.Client{utils.GetCacheClient(), utils.GetAuthCacheClient()}, database.MongoClient)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(handlers.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	paymentHandler := handlers.NewPaymentHandler(session, configProvider, dispatcher, attempts, attemptsRepo.ErrAttemptNotFound)
	paymentHandler.ForCountry = func(country string) (models.CardPresentPaymentsConfiguration, error) {
		return resolver.Resolve(country, cfg.StripeGatewayEnabled, cfg.CanadaEnabled)
	}
	handlerBundle := handlers.NewHandlerBundle(paymentHandler, utils.GetAuthCacheClient(), metrics.GinMiddleware())
	routes.RegisterRoutes(router, handlerBundle, cfg.CORSOrigins)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A payment still in flight is canceled so its intent is not left open.
	if err := session.Cancel(ctx); err != nil && !errors.Is(err, payments.ErrNoActiveAttempt) {
		logger.Warn("main: failed to cancel active attempt", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	if err := database.Disconnect(ctx); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
