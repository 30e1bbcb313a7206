package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/controller"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/factory"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/ledger"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/notify"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/provider"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/repository"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/service"
	"github.com/civicpay-solutions/ms-go-revenue-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the revenue payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, reconciliationService, cleanup := mustCreateReconciliationService()
	defer cleanup()

	paymentController := controller.NewPaymentController(reconciliationService)
	e := setupHTTPServer(paymentController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	payments := e.Group("/api/payments")
	payments.POST("/callback", paymentController.HandleProviderCallback)
	payments.POST("/:provider/process", paymentController.ProcessPayment)
	payments.POST("/:provider/verify", paymentController.VerifyPayment)
	payments.GET("/:reference", paymentController.GetPayment)

	return e
}

func mustCreateReconciliationService() (*config.Config, *service.ReconciliationService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)
	callbackRepo := repository.NewPaymentCallbackRepository(db)
	ledgerStore := repository.NewLedgerStore(db)

	paymentLedger := ledger.New(
		ledgerStore,
		eventRepo,
		cfg.Payments.CountryDialCode,
		cfg.Payments.Currency,
		factory.NewModuleLogger("payment-ledger"),
	)

	providerRegistry := provider.NewRegistry(enabledProviders(cfg)...)

	var notifier notify.Dispatcher = notify.NopDispatcher{}
	if cfg.SMS.Enabled {
		notifier = notify.NewSMSDispatcher(notify.SMSConfig{
			GatewayURL:  cfg.SMS.GatewayURL,
			APIKey:      cfg.SMS.APIKey,
			SenderID:    cfg.SMS.SenderID,
			HTTPTimeout: cfg.SMS.HTTPTimeout,
		}, factory.NewModuleLogger("sms-dispatcher"))
	}

	activityLogger, err := factory.NewActivityLogger(cfg.Log.ActivityFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open activity log")
	}

	reconciliationService := service.NewReconciliationService(
		paymentRepo,
		callbackRepo,
		paymentLedger,
		providerRegistry,
		notifier,
		cfg.Payments,
		factory.NewModuleLogger("reconciliation-service"),
		activityLogger,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, reconciliationService, cleanup
}

func enabledProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	if cfg.MTNMoMo.Enabled {
		providers = append(providers, provider.NewMTNMoMoProvider(provider.MTNMoMoConfig{
			BaseURL:           cfg.MTNMoMo.BaseURL,
			SubscriptionKey:   cfg.MTNMoMo.SubscriptionKey,
			APIUser:           cfg.MTNMoMo.APIUser,
			APIKey:            cfg.MTNMoMo.APIKey,
			TargetEnvironment: cfg.MTNMoMo.TargetEnvironment,
			HTTPTimeout:       cfg.MTNMoMo.HTTPTimeout,
		}))
	}
	if cfg.Paystack.Enabled {
		providers = append(providers, provider.NewPaystackProvider(provider.PaystackConfig{
			BaseURL:     cfg.Paystack.BaseURL,
			SecretKey:   cfg.Paystack.SecretKey,
			HTTPTimeout: cfg.Paystack.HTTPTimeout,
		}))
	}
	return providers
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
