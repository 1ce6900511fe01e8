package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/database"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/router"
	"github.com/iliyamo/hotel-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(database.Settings{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis backs the booking guard, rate limiter and cache.  Without it
	// the guard falls back to in-process locks and the other two are off.
	rdb := config.NewRedisClient(config.LoadRedisConfig())

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	hotels := repository.NewHotelRepo(db)
	bookings := repository.NewBookingRepo(db)

	inventory := service.NewInventoryLedger(hotels)
	gateway := service.NewPaymentGateway(repository.NewPaymentRepo(db), cfg.Payment)
	loyalty := service.NewLoyaltyLedger(repository.NewLoyaltyRepo(db), cfg.Loyalty)

	var guard service.Guard = service.NewLocalGuard()
	if rdb != nil {
		guard = service.NewRedisGuard(rdb, cfg.Booking.GuardTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, cfg.BookingLogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("booking consumer stopped: %v", err)
			}
		}()
	} else {
		log.Warn("RABBITMQ_URL not set; booking events are not published")
	}

	svc := service.NewBookingService(service.Deps{
		Hotels:    inventory,
		Inventory: inventory,
		Payments:  gateway,
		Loyalty:   loyalty,
		Bookings:  bookings,
		Events:    events,
		Guard:     guard,
	}, cfg.Booking, cfg.Loyalty.ReverseOnPaymentFailure)
	go svc.RunCompletionSweep(ctx, cfg.Booking.CompleteEvery)
	go svc.RunReleaseSweep(ctx, cfg.Booking.ReleaseEvery)

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	var mws router.Middlewares
	if rdb != nil {
		if rl := config.LoadRateLimitConfig(config.ScopeAPI); rl.Enabled {
			mws.RateLimit = middleware.NewTokenBucket(rl, rdb)
		}
		if rl := config.LoadRateLimitConfig(config.ScopeBooking); rl.Enabled {
			mws.BookingRateLimit = middleware.NewTokenBucket(rl, rdb)
		}
		if cc := config.LoadCacheConfig(); cc.Enabled {
			mws.Cache = middleware.NewRedisCache(cc, rdb)
		}
	}

	router.RegisterRoutes(e, router.Handlers{
		Health:   &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:     handler.NewAuthHandler(cfg, users, tokens, loyalty),
		Hotels:   handler.NewHotelHandler(hotels),
		Bookings: handler.NewBookingHandler(svc),
		Loyalty:  handler.NewLoyaltyHandler(loyalty),
	}, mws, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Infof("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
