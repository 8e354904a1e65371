// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"spout/internal/compliance/issuers"
	compliancemetrics "spout/internal/compliance/metrics"
	complianceservice "spout/internal/compliance/service"
	compliancestore "spout/internal/compliance/store"
	"spout/internal/compliance/topics"
	"spout/internal/compliance/tracer"
	"spout/internal/events"
	"spout/internal/events/publisher"
	identitymetrics "spout/internal/identity/metrics"
	identityservice "spout/internal/identity/service"
	identitystore "spout/internal/identity/store"
	ordersmetrics "spout/internal/orders/metrics"
	"spout/internal/orders/oracle"
	"spout/internal/orders/pricecache"
	ordersservice "spout/internal/orders/service"
	ordersstore "spout/internal/orders/store"
	"spout/internal/platform/config"
	"spout/internal/platform/httpserver"
	"spout/internal/platform/logger"
	"spout/internal/platform/middleware"
	platformredis "spout/internal/platform/redis"
	httptransport "spout/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var eventSink events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := publisher.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, publisher.WithLogger(log))
		if err != nil {
			return err
		}
		defer kafka.Close()
		eventSink = kafka
		log.Info("kafka publisher connected", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		identityStore identityservice.IdentityStore
		entryStore    complianceservice.EntryStore
		db            *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		identityPg := identitystore.NewPostgres(db)
		if err := identityPg.EnsureSchema(ctx); err != nil {
			return err
		}
		compliancePg := compliancestore.NewPostgres(db)
		if err := compliancePg.EnsureSchema(ctx); err != nil {
			return err
		}
		identityStore = identityPg
		entryStore = compliancePg
		log.Info("postgres stores ready")
	} else {
		identityStore = identitystore.NewInMemory()
		entryStore = compliancestore.NewInMemory()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	var priceCache ordersservice.PriceCache = pricecache.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		priceCache = pricecache.NewRedis(redisClient.Client)
		log.Info("redis price cache connected")
	}

	identities := identityservice.New(identityStore,
		identityservice.WithLogger(log),
		identityservice.WithPublisher(eventSink),
		identityservice.WithMetrics(identitymetrics.New()),
	)

	owners := make([]common.Address, 0, len(cfg.Registry.Owners))
	for _, raw := range cfg.Registry.Owners {
		if common.IsHexAddress(raw) {
			owners = append(owners, common.HexToAddress(raw))
		} else {
			log.Warn("ignoring malformed registry owner address", "address", raw)
		}
	}
	if len(owners) == 0 {
		log.Warn("no registry owners configured, registry mutations are disabled")
	}
	registry := complianceservice.New(
		entryStore,
		topics.NewRegistry(),
		issuers.NewRegistry(),
		identities,
		complianceservice.NewStaticOwners(owners...),
		complianceservice.WithLogger(log),
		complianceservice.WithPublisher(eventSink),
		complianceservice.WithMetrics(compliancemetrics.New()),
		complianceservice.WithTracer(tracer.NewOTel()),
	)

	orders := ordersservice.New(
		ordersstore.NewInMemory(),
		priceCache,
		oracle.NewLocal(),
		ordersservice.WithLogger(log),
		ordersservice.WithPublisher(eventSink),
		ordersservice.WithMetrics(ordersmetrics.New()),
		ordersservice.WithDecimals(ordersservice.StaticDecimals(cfg.Orders.DefaultTokenDecimals)),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Identities:             identities,
		Registry:               registry,
		Orders:                 orders,
		Validator:              middleware.NewValidator(cfg.Server.JWTSigningKey),
		Logger:                 log,
		DefaultSubscriptionRef: cfg.Orders.OracleSubscriptionRef,
		Health: func(r *http.Request) error {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting spout trust core", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
