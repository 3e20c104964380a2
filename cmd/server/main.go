// Command server runs the guest pass service. main wires dependencies from
// configuration and keeps the server lifecycle small; business logic lives in
// the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatepass/internal/audit"
	"gatepass/internal/guestpass/handler"
	"gatepass/internal/guestpass/issuelock"
	"gatepass/internal/guestpass/issuer"
	"gatepass/internal/guestpass/metrics"
	"gatepass/internal/guestpass/policy"
	"gatepass/internal/guestpass/ports"
	"gatepass/internal/guestpass/quota"
	"gatepass/internal/guestpass/renderer"
	"gatepass/internal/guestpass/service"
	"gatepass/internal/guestpass/store"
	passstore "gatepass/internal/guestpass/store/pass"
	policystore "gatepass/internal/guestpass/store/policy"
	usagestore "gatepass/internal/guestpass/store/usage"
	userstore "gatepass/internal/guestpass/store/user"
	"gatepass/internal/guestpass/verifier"
	"gatepass/internal/jwtauth"
	"gatepass/internal/platform/config"
	"gatepass/internal/platform/httpserver"
	"gatepass/internal/platform/logger"
	platformredis "gatepass/internal/platform/redis"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(os.Getenv("GATEPASS_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		users    ports.UserStore
		policies ports.PolicyStore
		usage    ports.UsageStore
		passes   ports.PassStore
		audits   audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := store.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		users = userstore.NewPostgres(db)
		policies = policystore.NewPostgres(db)
		usage = usagestore.NewPostgres(db)
		passes = passstore.NewPostgres(db)
		audits = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		users = userstore.NewMemoryStore()
		policies = policystore.NewMemoryStore()
		usage = usagestore.NewMemoryStore()
		passes = passstore.NewMemoryStore()
		audits = audit.NewMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	var auditor ports.AuditPublisher = audit.NewPublisher(audits)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := kafkaPublisher.Close(context.Background()); err != nil {
				log.Warn("kafka close failed", "error", err)
			}
		}()
		auditor = kafkaPublisher
		log.Info("audit events publishing to kafka", "topic", cfg.Kafka.Topic)
	}

	var locks ports.IssueLock = issuelock.NewMemoryLock()
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisLock, err := issuelock.NewRedisLock(redisClient.Client)
		if err != nil {
			log.Error("failed to build redis lock", "error", err)
			os.Exit(1)
		}
		locks = redisLock
		log.Info("issuance lock backed by redis")
	}

	m := metrics.New()

	resolver, err := policy.New(users, policies, policy.WithLogger(log))
	if err != nil {
		log.Error("failed to build policy resolver", "error", err)
		os.Exit(1)
	}
	counter, err := quota.New(passes, quota.WithLogger(log))
	if err != nil {
		log.Error("failed to build quota counter", "error", err)
		os.Exit(1)
	}
	credentialRenderer, err := renderer.New(renderer.NewMemoryObjectStore())
	if err != nil {
		log.Error("failed to build credential renderer", "error", err)
		os.Exit(1)
	}

	passIssuer, err := issuer.New(resolver, counter, passes, policies, usage, credentialRenderer,
		issuer.WithLogger(log),
		issuer.WithAuditPublisher(auditor),
		issuer.WithIssueLock(locks),
	)
	if err != nil {
		log.Error("failed to build issuer", "error", err)
		os.Exit(1)
	}
	passVerifier, err := verifier.New(passes,
		verifier.WithLogger(log),
		verifier.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("failed to build verifier", "error", err)
		os.Exit(1)
	}
	svc, err := service.New(passIssuer, passVerifier, passes,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	jwtService := jwtauth.New(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := chi.NewRouter()
	handler.New(svc, log, m, jwtauth.NewAdapter(jwtService)).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting gatepass server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
