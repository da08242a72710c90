package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-ticketing/internal/accounts"
	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := openStores(ctx, cfg)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	var locker guard.Locker
	if cfg.LockBackend == config.LockRedis {
		if rdb == nil {
			log.Fatal("LOCK_BACKEND=redis but redis is unavailable")
		}
		locker = guard.NewRedisLocker(rdb, "lock", cfg.LockTTL, cfg.LockRetry)
	}
	g := guard.New(guard.NewSigner(cfg.ETagSecret), locker)

	var events booking.Publisher
	if cfg.EventsEnabled {
		url := service.BrokerURL()
		events = service.NewPublisher(url)
		go func() {
			if err := queue.NewConsumer(url, service.TicketEventsQueue).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ticket consumer stopped: %v", err)
			}
		}()
	}

	svc := accounts.NewService(stores, g, cfg.BcryptCost)
	if cfg.SeedAdminLogin != "" {
		created, err := svc.SeedAdmin(ctx, cfg.SeedAdminLogin, cfg.SeedAdminPassword)
		if err != nil {
			log.Fatalf("seed admin: %v", err)
		}
		if created {
			log.Printf("seeded admin account %q", cfg.SeedAdminLogin)
		}
	}

	e := router.New(router.Deps{
		Cfg:       cfg,
		Stores:    stores,
		Accounts:  svc,
		Engine:    booking.NewEngine(stores, g, events),
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, locks=%s)", addr, cfg.Env, cfg.StoreDriver, cfg.LockBackend)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openStores selects the store implementation.  The memory store keeps
// nothing across restarts and is meant for local runs and demos.
func openStores(ctx context.Context, cfg config.Config) repository.Stores {
	if cfg.StoreDriver == config.StoreMemory {
		return repository.NewMemoryStores()
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	return repository.NewMySQLStores(db)
}
