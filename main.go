package main

// GET   /api/rewards?email=     - Current balance
// POST  /api/rewards/redeem     - Spend points (conditional, never overdraws)
// PATCH /api/rewards/set        - Overwrite a balance
// POST  /api/rewards/refund     - Return points for a removed reward
// POST  /api/rewards/credit     - Points earned by a completed order
// POST  /api/auth/register      - Create an account
// POST  /api/auth/login         - Check credentials, return the account
// POST  /api/password/change    - Change password
// GET   /api/admin/customers    - List accounts
// GET   /api/health             - Database connectivity

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"loyalty-cart/config"
	"loyalty-cart/handler"
	"loyalty-cart/service"
	"loyalty-cart/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// --- Store ---
	var st store.Store
	if cfg.DBDriver == "memory" {
		st = store.NewMemoryStore()
		logger.Warn("using in-memory store, balances are lost on restart")
	} else {
		sqlStore, err := store.Open(cfg.DBDriver, cfg.DSN)
		if err != nil {
			logger.Fatal("DB connection failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
		}
		if err := sqlStore.Migrate(context.Background()); err != nil {
			logger.Fatal("failed running migrations", zap.Error(err))
		}
		logger.Info("database migrations executed", zap.String("driver", cfg.DBDriver))
		st = sqlStore
	}
	defer st.Close()

	// --- Service ---
	svc := service.NewService(st, service.Policy{
		BcryptCost:         cfg.BcryptCost,
		SignupPoints:       cfg.SignupPoints,
		LoginDefaultPoints: cfg.LoginDefaultPoints,
	}, logger)

	// --- Handlers ---
	h := handler.NewHandler(svc, logger)
	h.AdminRequiresRole = cfg.AdminRequiresRole

	// --- Router ---
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// --- Server ---
	addr := ":" + cfg.Port
	logger.Info("server running", zap.String("addr", addr), zap.Bool("admin_requires_role", cfg.AdminRequiresRole))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
