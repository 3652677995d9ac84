package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"strategy-backend/internal/cache"
	httpdelivery "strategy-backend/internal/delivery/http"
	"strategy-backend/internal/delivery/websocket"
	"strategy-backend/internal/domain"
	"strategy-backend/internal/infrastructure/audit"
	"strategy-backend/internal/infrastructure/broker"
	"strategy-backend/internal/infrastructure/db"
	"strategy-backend/internal/infrastructure/fcm"
	"strategy-backend/internal/infrastructure/firestore"
	"strategy-backend/internal/repository"
	"strategy-backend/internal/usecase"
)

func main() {
	ctx := context.Background()

	// 1. Initialize Firebase (Firestore strategy store + auth)
	firebaseClients, err := firestore.NewClients(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	var strategyStore domain.StrategyStore
	if firebaseClients.Enabled() {
		strategyStore = firestore.NewStrategyStore(firebaseClients.Firestore)
	} else {
		strategyStore = repository.NewInMemoryStrategyStore()
	}

	// 2. Initialize Postgres (accounts, plans, subscriptions, snapshots)
	var (
		accountRepo  domain.AccountRepository
		planRepo     domain.PlanRepository
		subRepo      domain.SubscriptionRepository
		snapshotRepo domain.BalanceSnapshotRepository
	)
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		pool, err := db.NewPool(ctx, databaseURL, db.PoolConfigFromEnv())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		if err := db.SeedPlans(ctx, pool); err != nil {
			log.Fatalf("Failed to seed plans: %v", err)
		}

		accountRepo = repository.NewPostgresAccountRepository(pool)
		planRepo = repository.NewPostgresPlanRepository(pool)
		subRepo = repository.NewPostgresSubscriptionRepository(pool)
		snapshotRepo = repository.NewPostgresBalanceSnapshotRepository(pool)
		log.Println("Postgres initialized")
	} else {
		log.Println("Warning: No DATABASE_URL configured. Using in-memory repositories.")
		accountRepo = repository.NewInMemoryAccountRepository()
		planRepo = repository.NewInMemoryPlanRepository(repository.DefaultPlans()...)
		subRepo = repository.NewInMemorySubscriptionRepository()
		snapshotRepo = repository.NewInMemoryBalanceSnapshotRepository()
	}

	// 3. Initialize Caches (Redis mirror when configured)
	var mirror cache.Store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		mirror = cache.NewRedisStore(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		log.Println("Redis mirror initialized")
	} else {
		log.Println("Warning: No REDIS_ADDR configured. Strategy cache is memory-only.")
	}
	strategyCache := cache.NewStrategyCache(mirror)
	balanceCache := cache.NewBalanceCache(cache.DefaultBalanceStaleAfter)

	// 4. Initialize FCM + device tokens
	tokenRepo := repository.NewTokenRepository()
	fcmClient, err := fcm.NewClient(ctx, firebaseClients.App)
	if err != nil {
		log.Fatalf("Failed to initialize FCM: %v", err)
	}
	notifier := usecase.NewNotificationService(fcmClient, tokenRepo)

	// 5. Initialize audit publisher
	auditPublisher := audit.NewPublisher(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_AUDIT_TOPIC"))
	defer auditPublisher.Close()

	// 6. Initialize balance provider
	var balanceProvider domain.BalanceProvider
	if brokerURL := os.Getenv("BROKER_GATEWAY_URL"); brokerURL != "" {
		balanceProvider = broker.NewClient(brokerURL)
	} else {
		log.Println("Warning: No BROKER_GATEWAY_URL configured. Serving initial balances.")
		balanceProvider = broker.StaticProvider{}
	}

	// 7. Initialize Usecases
	guard := usecase.NewPlanGuard(planRepo, subRepo)
	strategyService := usecase.NewStrategyService(strategyStore, accountRepo, strategyCache, guard, auditPublisher, notifier)
	balanceService := usecase.NewBalanceService(accountRepo, balanceProvider, snapshotRepo, balanceCache)

	// 8. Initialize Delivery
	authn := httpdelivery.NewAuthenticator(firebaseClients.Auth, os.Getenv("AUTH_JWT_SECRET"))
	strategyHandler := httpdelivery.NewStrategyHandler(strategyService)
	accountHandler := httpdelivery.NewAccountHandler(accountRepo, guard, balanceService)
	planHandler := httpdelivery.NewPlanHandler(guard, accountRepo, strategyStore)
	tokenHandler := httpdelivery.NewTokenHandler(tokenRepo)
	wsHandler := websocket.NewHandler(strategyService, httpdelivery.UserID)

	http.HandleFunc("/api/strategies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authn.RequireUser(strategyHandler.HandleCreate)(w, r)
			return
		}
		authn.RequireUser(strategyHandler.HandleList)(w, r)
	})
	http.HandleFunc("/api/strategies/get", authn.RequireUser(strategyHandler.HandleGet))
	http.HandleFunc("/api/strategies/activate", authn.RequireUser(strategyHandler.HandleActivate))
	http.HandleFunc("/api/strategies/delete", authn.RequireUser(strategyHandler.HandleDelete))
	http.HandleFunc("/api/strategies/copy", authn.RequireUser(strategyHandler.HandleCopy))
	http.HandleFunc("/api/strategies/rename", authn.RequireUser(strategyHandler.HandleRename))
	http.HandleFunc("/api/strategies/configuration", authn.RequireUser(strategyHandler.HandleUpdateConfiguration))

	http.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			authn.RequireUser(accountHandler.HandleCreate)(w, r)
			return
		}
		authn.RequireUser(accountHandler.HandleList)(w, r)
	})
	http.HandleFunc("/api/accounts/delete", authn.RequireUser(accountHandler.HandleDelete))
	http.HandleFunc("/api/balance", authn.RequireUser(accountHandler.HandleBalance))

	http.HandleFunc("/api/limitations", authn.RequireUser(planHandler.HandleLimitations))
	http.HandleFunc("/api/plan/downgrade-check", authn.RequireUser(planHandler.HandleDowngradeCheck))

	http.HandleFunc("/api/tokens/register", authn.RequireUser(tokenHandler.HandleRegisterToken))
	http.HandleFunc("/api/tokens/unregister", authn.RequireUser(tokenHandler.HandleUnregisterToken))

	http.HandleFunc("/ws", authn.RequireUser(wsHandler.Handle))

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Server executing on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
