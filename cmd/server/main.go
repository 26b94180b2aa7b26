package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // embedded zone database for TIMEZONE

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/config"
	"github.com/iliyamo/travel-ticket-booking/internal/database"
	"github.com/iliyamo/travel-ticket-booking/internal/handler"
	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
	"github.com/iliyamo/travel-ticket-booking/internal/payment"
	"github.com/iliyamo/travel-ticket-booking/internal/queue"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/repository/memory"
	"github.com/iliyamo/travel-ticket-booking/internal/router"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

// stores groups the persistence ports the services depend on.
type stores struct {
	tickets  service.TicketStore
	bookings service.BookingStore
	ledger   service.PaymentLedger
	txns     service.TransactionStore
	users    service.UserStore
	tokens   service.TokenStore
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	_ = godotenv.Load() // .env is optional outside development

	cfg := config.Load()
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	monitor := metrics.NewMonitor()
	checks := map[string]handler.Pinger{}

	st := openStores(cfg, log, checks)

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks["redis"] = redisPinger{rdb}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.RabbitURL, log)
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.AuditLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	expiry := service.NewExpiryPolicy(cfg.Location())
	users := service.NewUserService(st.users, cfg.BcryptCost, log)
	bookings := service.NewBookingService(st.tickets, st.bookings, expiry, monitor, log)
	tickets := service.NewTicketService(st.tickets, st.users, expiry, cfg.AdvertiseLimit, log)
	payments := service.NewPaymentService(service.PaymentDeps{
		Bookings:     st.bookings,
		Tickets:      st.tickets,
		Ledger:       st.ledger,
		Transactions: st.txns,
		Gateway:      newGateway(cfg, monitor, log),
		Events:       events,
		Expiry:       expiry,
		Config:       service.PaymentConfig{PublishableKey: cfg.StripePublishableKey, Currency: cfg.Currency},
		Views:        bookings,
		Monitor:      monitor,
		Log:          log,
	})

	e := router.New(router.Deps{
		Auth: handler.NewAuthHandler(handler.AuthConfig{
			JWTSecret:      cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
		}, users, st.tokens),
		Tickets:     handler.NewTicketHandler(tickets),
		Bookings:    handler.NewBookingHandler(bookings),
		Payments:    handler.NewPaymentHandler(payments),
		Users:       handler.NewUserHandler(users),
		Health:      handler.NewHealthHandler(checks),
		JWTSecret:   cfg.JWTSecret,
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		Idempotency: config.LoadIdempotencyConfig(),
		Monitor:     monitor,
		Log:         log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "db": cfg.DBDriver, "payments": cfg.PaymentProvider}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// openStores selects MySQL or the in-process store from DB_DRIVER.
func openStores(cfg config.Config, log *logrus.Logger, checks map[string]handler.Pinger) stores {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		m := memory.New()
		return stores{tickets: m, bookings: m, ledger: m, txns: m, users: m, tokens: m}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.WithError(err).Fatal("db migrate failed")
	}
	checks["db"] = db
	return stores{
		tickets:  repository.NewTicketRepo(db),
		bookings: repository.NewBookingRepo(db),
		ledger:   repository.NewTransactionRepo(db),
		txns:     repository.NewTransactionRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
	}
}

// newGateway builds the configured processor behind a circuit breaker.
func newGateway(cfg config.Config, monitor *metrics.Monitor, log logrus.FieldLogger) payment.Gateway {
	var gw payment.Gateway
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		gw = payment.NewStripeGateway(cfg.StripeSecretKey)
	default:
		log.Warn("using fake payment gateway")
		fake := payment.NewFakeGateway()
		fake.AutoSucceed = true
		gw = fake
	}
	cb := payment.NewCircuitBreaker("payment", payment.DefaultBreakerSettings())
	cb.OnStateChange(func(name string, from, to payment.State) {
		monitor.SetBreakerState(name, int(to))
		log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
	})
	return payment.NewBreakerGateway(gw, cb)
}
