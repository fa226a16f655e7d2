package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/config"
	"clinic-booking/internal/events"
	"clinic-booking/internal/grpcfeed"
	"clinic-booking/internal/grpcweb"
	"clinic-booking/internal/handler"
	"clinic-booking/internal/metrics"
	"clinic-booking/internal/middleware"
	"clinic-booking/internal/notify"
	"clinic-booking/internal/store"
	"clinic-booking/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config")
	}

	catalog, window, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.WithError(err).Fatal("catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("db ping")
	}
	log.Info("connected to postgres")

	mg, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("migrator")
	}
	if err := mg.Up(); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	_ = mg.Close()

	st := store.New(pool)

	// token revocation
	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("redis ping")
		}
		revoker = auth.NewRedisRevoker(rdb)
		log.WithField("addr", cfg.RedisAddr).Info("token revocation in redis")
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing events to kafka")
	}
	defer pub.Close()

	var sender notify.EmailSender = notify.NewStubEmailSender(log)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, log); sg != nil {
		sender = sg
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authn := middleware.NewAuthenticator(issuer, revoker)
	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Stop()

	h := handler.New(st, issuer,
		handler.WithRevoker(revoker),
		handler.WithCatalog(catalog, window),
		handler.WithUniqueSlots(cfg.UniqueSlotBooking),
		handler.WithPublisher(pub),
		handler.WithNotifier(notify.NewStatusNotifier(sender, log)),
		handler.WithMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
		handler.WithLogger(log),
	)

	// grpc feed
	grpcSrv, hs := grpcfeed.NewGRPCServer(grpcfeed.NewServer(st, log), authn, rl)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}
	go func() {
		log.WithField("port", cfg.GRPCPort).Info("grpc listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.WithError(err).Error("grpc")
		}
	}()

	// grpc-web bridge -> forwards browser feed calls to grpc on localhost
	bridge, err := grpcweb.New("localhost:"+cfg.GRPCPort, []string{grpcfeed.CountMethod}, log)
	if err != nil {
		log.WithError(err).Fatal("bridge")
	}
	defer bridge.Close()

	httpSrv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: h.Router(handler.RouterConfig{
			Auth:        authn,
			Limiter:     rl,
			CORSOrigins: cfg.CORSAllowedOrigins,
			Metrics:     promhttp.Handler(),
			GRPCWeb:     bridge,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	hs.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	grpcSrv.GracefulStop()
}
