package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/ticket-reservation/internal/api"
	"github.com/sanosuguru/ticket-reservation/internal/api/handler"
	apimw "github.com/sanosuguru/ticket-reservation/internal/api/middleware"
	"github.com/sanosuguru/ticket-reservation/internal/application"
	"github.com/sanosuguru/ticket-reservation/internal/config"
	"github.com/sanosuguru/ticket-reservation/internal/infrastructure/memlock"
	"github.com/sanosuguru/ticket-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/ticket-reservation/internal/infrastructure/rediscache"
	"github.com/sanosuguru/ticket-reservation/internal/infrastructure/redislock"
	"github.com/sanosuguru/ticket-reservation/internal/lock"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/ticket-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/ticket-reservation/internal/worker"
)

func main() {
	cfg := config.Load()

	log.SetOutput(os.Stdout)
	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("データベース接続に失敗しました: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := postgres.Ping(ctx, db); err != nil {
		cancel()
		log.Fatalf("データベースのpingに失敗しました: %v", err)
	}
	cancel()

	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		log.Fatalf("マイグレーション実行に失敗しました: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var lockManager lock.Manager
	if cfg.Reservation.UseRedisLock {
		lockManager = redislock.New(redisClient)
	} else {
		lockManager = memlock.New()
	}

	cache := rediscache.New(redisClient)
	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)

	m := metrics.Init()

	eventService := application.NewEventService(txManager, eventRepo, ticketRepo, cache, cfg.Reservation.CacheTTL, m)
	ticketService := application.NewTicketService(
		txManager, ticketRepo, lockManager, eventService,
		cfg.Reservation.Window, cfg.Reservation.LockWaitBudget, cfg.Reservation.LockLeaseBudget, m,
	)

	reaper := worker.NewExpiryReaper(ticketRepo, eventService, cfg.Reservation.ReaperPeriod, cfg.Reservation.ReaperInitialDelay)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go reaper.Start(reaperCtx)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimw.SetupMiddleware(e)
	e.Use(apimw.PrometheusMiddleware(m))

	eventHandler := handler.NewEventHandler(eventService)
	ticketHandler := handler.NewTicketHandler(ticketService)
	healthHandler := handler.NewHealthHandler()

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)

	v1.POST("/events", eventHandler.Create)
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/paged", eventHandler.ListPaged)
	v1.GET("/events/available", eventHandler.ListAvailable)
	v1.GET("/events/:id", eventHandler.GetByID)

	v1.POST("/tickets/reserve", ticketHandler.Reserve)
	v1.GET("/tickets/event/:eventId", ticketHandler.ListByEvent)
	v1.GET("/tickets/customer/:email", ticketHandler.ListByCustomer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimw.MetricsBasicAuth())

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("サーバー起動エラー: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("サーバーをシャットダウンしています...")

	stopReaper()
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("サーバーシャットダウンエラー: %v", err)
	}

	log.Println("サーバーが正常にシャットダウンしました")
}
