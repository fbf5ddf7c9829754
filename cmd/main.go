package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"alert-service/internal/alerts"
	"alert-service/internal/api"
	"alert-service/internal/config"
	"alert-service/internal/db"
	"alert-service/internal/gateway"
	"alert-service/internal/hub"
	"alert-service/internal/kafka"
	"alert-service/internal/logging"
	"alert-service/internal/notify"
	"alert-service/internal/otp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logger.Infof("Starting alert service")

	database, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	eventHub := hub.New(logger)

	// Providers are optional; a missing one disables its channel.
	var smsGW notify.SMSGateway
	var emailGW notify.EmailGateway
	var opsGW notify.OpsGateway

	smsClient, err := gateway.NewSMSClient(cfg)
	if err != nil {
		logger.Warnf("SMS channel disabled: %v", err)
	} else {
		smsGW = smsClient
	}

	emailClient, err := gateway.NewEmailClient(cfg)
	if err != nil {
		logger.Warnf("Email channel disabled: %v", err)
	} else {
		emailGW = emailClient
	}

	opsChannel, err := gateway.NewOpsChannel(cfg, logger)
	if err != nil {
		logger.Warnf("Telegram ops channel disabled: %v", err)
	} else {
		opsGW = opsChannel
	}

	dispatcher := notify.New(smsGW, emailGW, opsGW, eventHub, logger, cfg)

	alertSvc := alerts.New(database, database, dispatcher, eventHub, logger, cfg)
	var wg sync.WaitGroup
	alertSvc.Start(&wg)

	otpSvc := otp.New(database, &gateway.CodeSender{SMS: smsClient, Email: emailClient}, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	// Expired challenges are rejected at verification regardless; the
	// hourly purge just keeps the table small.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := database.PurgeExpiredChallenges(ctx); err != nil {
					logger.Errorf("Challenge purge failed: %v", err)
				} else if n > 0 {
					logger.Infof("Purged %d expired challenges", n)
				}
			}
		}
	}()

	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic != "" {
		consumer = kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, alertSvc, logger)
		go consumer.Start(ctx)
	} else {
		logger.Infof("Kafka ingest disabled: no broker configured")
	}

	handler := api.NewHandler(alertSvc, otpSvc, database, logger)
	router := api.NewRouter(logger, cfg, handler, eventHub)

	go func() {
		logger.Infof("API listening on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down")
	cancel()
	if consumer != nil {
		consumer.Close()
	}
	alertSvc.Stop()
	eventHub.Close()
	wg.Wait()
	logger.Infof("Shutdown complete")
}
