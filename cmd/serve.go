package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/config"
	"github.com/jmehdipour/sms-forwarder/internal/db"
	"github.com/jmehdipour/sms-forwarder/internal/dispatcher"
	httpSrv "github.com/jmehdipour/sms-forwarder/internal/http"
	"github.com/jmehdipour/sms-forwarder/internal/logger"
	"github.com/jmehdipour/sms-forwarder/internal/repository"
	"github.com/jmehdipour/sms-forwarder/internal/service/events"
	"github.com/jmehdipour/sms-forwarder/internal/twiml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		scheme, _ := cfg.CredentialScheme()
		log.Info("configuration loaded",
			zap.String("credentials", scheme), zap.String("forward_to", cfg.Forward.ToNumber))

		// stores
		storeLog := log.Named("store")
		messagesRepo := repository.NewMessagesRepository(cfg.Storage.MessagesFile, storeLog)
		tokensRepo := repository.NewTokensRepository(cfg.Storage.TokensFile, storeLog)

		redisClient, err := db.NewRedisClient(cmd.Context(), db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		}

		// sinks
		pushClient := dispatcher.NewHTTPPushClient(
			cfg.Push.URL, cfg.Push.AccessToken, cfg.Push.Timeout,
			cfg.Push.Breaker.FailThreshold, cfg.Push.Breaker.OpenFor,
		)
		pushDispatcher := dispatcher.NewPushDispatcher(pushClient, tokensRepo, log.Named("push"))
		relay := dispatcher.NewWebhookRelay(
			cfg.Webhook.URL, cfg.Webhook.Timeout,
			cfg.Webhook.Breaker.FailThreshold, cfg.Webhook.Breaker.OpenFor,
			log.Named("webhook"),
		)

		eventsSvc := events.New(messagesRepo, pushDispatcher, relay, forwardOf(cfg.Forward), log.Named("events"))

		server := httpSrv.NewServer(cfg, messagesRepo, tokensRepo, eventsSvc, redisClient, log.Named("http"))

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr())
		}()

		base := "http://localhost" + cfg.HTTP.Addr()
		log.Info("callback urls",
			zap.String("sms", base+"/sms"),
			zap.String("voice", base+"/voice"),
			zap.String("call_status", base+"/call-status"),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

func forwardOf(f config.ForwardConfig) twiml.Forward {
	return twiml.Forward{
		To:             f.ToNumber,
		RingTimeout:    f.RingTimeout,
		Voice:          f.Voice,
		Greeting:       f.Greeting,
		FailureMessage: f.FailureMessage,
		Record:         f.Record,
	}
}
