package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parksavvy/internal/config"
	"github.com/iliyamo/parksavvy/internal/database"
	"github.com/iliyamo/parksavvy/internal/handler"
	"github.com/iliyamo/parksavvy/internal/hints"
	"github.com/iliyamo/parksavvy/internal/ledger"
	"github.com/iliyamo/parksavvy/internal/logger"
	"github.com/iliyamo/parksavvy/internal/middleware"
	"github.com/iliyamo/parksavvy/internal/queue"
	"github.com/iliyamo/parksavvy/internal/repository"
	"github.com/iliyamo/parksavvy/internal/router"
	queue_publisher "github.com/iliyamo/parksavvy/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.OpenConfig(cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.DBDriver).Fatal("open database")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.WithError(err).Warn("redis unavailable; cache and rate limit disabled")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	icons, err := config.LoadIcons(cfg.MarkerIconsFile)
	if err != nil {
		log.WithError(err).WithField("file", cfg.MarkerIconsFile).Fatal("load marker icons")
	}

	publisher := queue_publisher.New(cfg.AMQPURL, log)
	points := ledger.New(repository.NewPointsRepo(db), publisher, log, cfg.UploadRewardPoints)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	spots := repository.NewParkingSpotRepo(db)
	avail := handler.NewAvailabilityHandler(hintSource(cfg, db), icons, cfg.HintTimeout, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterAvailability(e, avail, middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log))
	router.RegisterPoints(e, handler.NewPointsHandler(points), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterParking(e,
		handler.NewParkingSpotHandler(spots, avail),
		handler.NewFavoriteHandler(repository.NewFavoriteRepo(db), spots),
		cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	if cfg.UploadConsumerEnabled {
		go func() {
			defer close(consumerDone)
			if err := queue.StartUploadConsumer(ctx, cfg.AMQPURL, points, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("upload consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{
			"addr":        addr,
			"env":         cfg.Env,
			"db_driver":   cfg.DBDriver,
			"hint_source": cfg.HintSource,
		}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	<-consumerDone
	points.Wait()
}

// hintSource picks the configured source of parking hints.
func hintSource(cfg config.Config, db *sql.DB) hints.Source {
	if cfg.HintSource == config.HintSourceSupabase {
		return hints.NewHTTPSource(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HintTimeout)
	}
	return repository.NewAreaRepo(db)
}
