package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/renholm/studio-class-booking/internal/config"
	"github.com/renholm/studio-class-booking/internal/database"
	"github.com/renholm/studio-class-booking/internal/gateway"
	"github.com/renholm/studio-class-booking/internal/handler"
	"github.com/renholm/studio-class-booking/internal/middleware"
	"github.com/renholm/studio-class-booking/internal/notifier"
	"github.com/renholm/studio-class-booking/internal/queue"
	"github.com/renholm/studio-class-booking/internal/repository"
	"github.com/renholm/studio-class-booking/internal/router"
	"github.com/renholm/studio-class-booking/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and refund-receipt caching disabled")
	}

	store := repository.NewStore(db)
	gw := gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, rdb)

	dispatcher := notifier.NewDispatcher(notifier.NewAMQPNotifier(cfg.AMQPURL), cfg.NotifyBufferSize)
	defer dispatcher.Close()

	policy := service.CancellationPolicy{
		FreeWindow:     cfg.FreeCancelWindow,
		LateWindow:     cfg.LateCancelWindow,
		LateFeePercent: cfg.LateCancelFeePct,
		RejectNoRefund: cfg.RejectNoRefund,
	}
	promoter := service.NewWaitlistPromoter(store, dispatcher, cfg.WaitlistClaimTTL)
	cancellations := service.NewCancellationService(store, gw, dispatcher, promoter, policy)
	sessionCancels := service.NewSessionCancellationService(store, gw, dispatcher)
	sweeper := service.NewClaimExpirySweeper(store, promoter, cfg.ClaimSweepEvery)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartNotificationConsumer(cfg.AMQPURL); err != nil {
			log.Printf("notification consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Booking:      handler.NewBookingHandler(store),
		Cancellation: handler.NewCancellationHandler(cancellations),
		Studio:       handler.NewStudioHandler(store.Sessions, sessionCancels),
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Println(err)
	}
}
