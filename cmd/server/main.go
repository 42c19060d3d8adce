package main // Entry point package

import (
	"context"
	"errors"
	"log" // startup failures before the logger exists
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // HOTEL_TIMEZONE must resolve on minimal images

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/availability"
	"github.com/iliyamo/hotel-booking/internal/config" // Internal config loader
	"github.com/iliyamo/hotel-booking/internal/database"
	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/notify"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/router" // Internal router setup
	"github.com/iliyamo/hotel-booking/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logEntry := logrus.NewEntry(logger).WithField("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("database: %v", err)
		}
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		logEntry.WithError(err).Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var publisher service.Publisher
	if pub, err := queue.NewPublisher(cfg.AMQPURL, logEntry.WithField("component", "publisher")); err != nil {
		logEntry.WithError(err).Warn("broker unavailable, lifecycle events disabled")
		publisher = queue.NopPublisher{Log: logEntry}
	} else {
		defer pub.Close()
		publisher = pub
	}

	rooms := repository.NewRoomRepo(db)
	reservations := repository.NewReservationRepo(db)
	svcLog := logEntry.WithField("component", "booking")
	svc := service.NewBookingService(service.Deps{
		Rooms:        rooms,
		Reservations: reservations,
		Orders:       repository.NewOrderRepo(db),
		Tx:           repository.NewSQLTx(db),
		Checker:      availability.NewChecker(rooms, reservations, cfg.Location, svcLog),
		Instructions: payment.Instructions{
			AccountNumber: cfg.SepayAccountNumber,
			BankBin:       cfg.SepayBankBin,
			AccountName:   cfg.SepayAccountName,
		},
		Publisher: publisher,
		Log:       svcLog,
	}, service.Options{
		PaymentWindow:  cfg.PaymentWindow,
		PriceCheck:     service.PriceCheck(cfg.PriceCheck),
		PriceTolerance: cfg.PriceTolerance,
		Location:       cfg.Location,
	})

	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	}, logEntry.WithField("component", "mailer"))
	consumer := &queue.Consumer{
		URL:      cfg.AMQPURL,
		Dir:      cfg.BookingLogDir,
		Notifier: mailer,
		Log:      logEntry.WithField("component", "consumer"),
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logEntry.WithError(err).Error("booking consumer stopped")
		}
	}()
	go svc.RunSweeper(ctx, cfg.SweepInterval)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := logEntry.WithFields(logrus.Fields{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency.String(),
				"remote_ip": v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	opts := router.Options{
		JWTSecret:  cfg.JWTSecret,
		WebhookKey: cfg.SepayAPIKey,
		RateLimit:  config.LoadRateLimitConfig(),
		Cache:      config.LoadCacheConfig(),
		Redis:      rdb,
		DB:         db,
		Log:        logEntry,
	}
	router.RegisterRoutes(e, opts) // Register application routes
	router.RegisterPublic(e, handler.NewRoomHandler(svc, logEntry), opts)
	router.RegisterBooking(e, handler.NewPaymentHandler(svc, logEntry), opts)
	router.RegisterStaff(e, handler.NewStaffHandler(svc, logEntry), opts)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logEntry.Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logEntry.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logEntry.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logEntry.WithError(err).Error("graceful shutdown failed")
	}
}
