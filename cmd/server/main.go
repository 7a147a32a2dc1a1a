package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/access"
	"github.com/Freeeeeet/review_scheduler/internal/app"
	"github.com/Freeeeeet/review_scheduler/internal/config"
	"github.com/Freeeeeet/review_scheduler/internal/httpapi"
	"github.com/Freeeeeet/review_scheduler/internal/metrics"
	"github.com/Freeeeeet/review_scheduler/internal/notify"
	"github.com/Freeeeeet/review_scheduler/internal/repository"
	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
	"github.com/Freeeeeet/review_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/Freeeeeet/review_scheduler/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// storage хранилище, выбранное при старте
type storage struct {
	slots      service.SlotStore
	bookings   service.BookingLedger
	tx         service.TxManager
	profiles   access.Profiles
	classrooms access.Classrooms
	activities notify.ActivityStore
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting review scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.Store),
		zap.String("timezone", cfg.Timezone.String()),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	notifier, closeNotifier, err := buildNotifier(cfg, store.activities, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyBuffer, m, logger.Named("notify"))

	guard := access.NewGuard(cfg.JWTSecret, store.profiles, store.classrooms)

	bookingService := service.NewBookingService(
		store.slots,
		store.bookings,
		store.tx,
		guard,
		dispatcher,
		m,
		service.Config{
			Location:   cfg.Timezone,
			MaxRetries: cfg.BookingMaxRetries,
		},
		logger.Named("booking"),
	)

	server, err := httpapi.NewServer(bookingService, guard, m, registry, logger.Named("http"), &httpapi.Config{
		Host: cfg.HTTPHost,
		Port: cfg.HTTPPort,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	scheduler := app.NewScheduler(bookingService, cfg.SweepInterval, logger.Named("scheduler"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", zap.Error(err))
		}
		// Сначала останавливаем приём запросов, потом дожидаемся доставки событий
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn("Activity queue not drained", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Store == config.StoreMemory {
		return openMemory(cfg, logger)
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, migrations.FS, logger.Named("migrations"))
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &storage{
		slots:      repository.NewSlotRepository(pool),
		bookings:   repository.NewBookingRepository(pool),
		tx:         base.NewTxManager(pool),
		profiles:   repository.NewUserRepository(pool),
		classrooms: repository.NewAccessRepository(pool),
		activities: repository.NewActivityRepository(pool),
		close:      pool.Close,
	}, nil
}

func openMemory(cfg *config.Config, logger *zap.Logger) (*storage, error) {
	store := memory.NewStore()

	if cfg.SeedFile != "" {
		f, err := os.Open(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		if err := store.LoadSeed(f); err != nil {
			return nil, err
		}
	}

	logger.Warn("Using in-memory store, data is lost on restart")

	return &storage{
		slots:      store.Slots(),
		bookings:   store.Bookings(),
		tx:         store,
		profiles:   store.Users(),
		classrooms: store.Access(),
		activities: store.Activities(),
		close:      func() {},
	}, nil
}

// buildNotifier собирает получателей событий по конфигу
func buildNotifier(cfg *config.Config, activities notify.ActivityStore, logger *zap.Logger) (notify.Notifier, func(), error) {
	sinks := notify.Multi{
		{Name: "log", Notifier: notify.NewLogNotifier(logger.Named("activity"))},
		{Name: "store", Notifier: notify.NewStoreNotifier(activities)},
	}
	closers := []func(){}

	if cfg.TelegramToken != "" {
		b, err := notify.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, notify.Named{
			Name:     "telegram",
			Notifier: notify.NewTelegramNotifier(b, cfg.TelegramChatID),
		})
		logger.Info("Telegram notifications enabled", zap.Int64("chat_id", cfg.TelegramChatID))
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("review_scheduler"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		closers = append(closers, nc.Close)
		sinks = append(sinks, notify.Named{
			Name:     "nats",
			Notifier: notify.NewNATSNotifier(nc, cfg.NATSSubject),
		})
		logger.Info("Connected to NATS", zap.String("url", cfg.NATSURL))
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	return sinks, closeAll, nil
}
