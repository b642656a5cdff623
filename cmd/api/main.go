package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dextasynergyservices/bookprinta-sub000/api/routes"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/checkout"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/gateways"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/notifications"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/clamav"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/cloudinary"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/flutterwave"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/metrics"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/migrate"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/opay"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/paystack"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/redis"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/sendgrid"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/whatsapp"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	adapters := gateways.AdapterSet{
		enums.PaymentProviderPaystack:    paystack.NewClient(cfg.Paystack, logg),
		enums.PaymentProviderFlutterwave: flutterwave.NewClient(cfg.Flutterwave, logg),
		enums.PaymentProviderOPay:        opay.NewClient(cfg.OPay, logg),
	}

	gatewayService, err := gateways.NewService(gateways.NewRepository(dbClient.DB()), adapters)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.Params{
		Repo:   checkout.NewRepository(dbClient.DB()),
		Config: cfg.Checkout,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notifier, err := notifications.NewService(notifications.Params{
		Repo:   notificationsRepo,
		Email:  sendgrid.NewClient(cfg.Sendgrid, logg),
		Text:   whatsapp.NewClient(cfg.WhatsApp, logg),
		Admin:  cfg.Admin,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	paymentService, err := payments.NewService(payments.Params{
		Repo:     payments.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Gateways: gatewayService,
		Checkout: checkoutService,
		Notifier: notifier,
		Metrics:  metrics.NewPaymentMetrics(registry),
		Dedup:    redisClient,
		Cache:    redisClient,
		Receipts: cloudinary.NewClient(cfg.Cloudinary, logg),
		Scanner:  clamav.NewClient(cfg.Scanner, cfg.FeatureFlags.AVScan, logg),
		Config:   cfg.Checkout,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:            cfg,
			Logger:            logg,
			DB:                dbClient,
			Redis:             redisClient,
			Gateways:          gatewayService,
			Payments:          paymentService,
			NotificationsRepo: notificationsRepo,
			Metrics:           registry,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
