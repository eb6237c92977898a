package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/config"
	"github.com/jmehdipour/sms-forwarder/internal/http/middleware"
	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"github.com/jmehdipour/sms-forwarder/internal/repository"
	"github.com/jmehdipour/sms-forwarder/internal/service/events"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(
	cfg config.Config,
	messagesRepo repository.MessagesRepository,
	tokensRepo repository.TokensRepository,
	eventsSvc *events.Service,
	rds *redis.Client,
	logger *zap.Logger,
) *Server {
	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), requestLogger(logger))
	e.Use(echoMid.CORSWithConfig(echoMid.CORSConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderXRequestedWith, echo.HeaderContentType, echo.HeaderAccept},
	}))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/", summaryHandler(messagesRepo, tokensRepo))

	// provider callbacks
	e.POST("/sms", callback("Error processing SMS", logger, smsHandler(eventsSvc)))
	e.POST("/voice", callback("Error processing call", logger, voiceHandler(eventsSvc)))
	e.POST("/call-status", callback("Error processing call status", logger, callStatusHandler(eventsSvc)))

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	api := e.Group("/api", rlMW)
	api.GET("/messages", listMessagesHandler(messagesRepo))
	api.GET("/messages/count", countMessagesHandler(messagesRepo))
	api.POST("/messages/:id/read", markReadHandler(messagesRepo, logger))
	api.POST("/messages/:id/replied", markRepliedHandler(messagesRepo, logger))
	api.POST("/register-push-token", registerTokenHandler(tokensRepo, logger))
	api.POST("/test-push", testPushHandler(eventsSvc, tokensRepo))

	return &Server{e: e, log: logger}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

func echoLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
