package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mijob/internal/auth"
	"mijob/internal/config"
	"mijob/internal/conversation"
	"mijob/internal/email"
	"mijob/internal/gate"
	"mijob/internal/ledger"
	"mijob/internal/logger"
	"mijob/internal/mission"
	"mijob/internal/presence"
	"mijob/internal/quota"
	"mijob/internal/settlement"
	"mijob/internal/subscription"
	"mijob/internal/usage"
	"mijob/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	hub    *presence.Hub
	config *config.Config
}

// New assembles every component on top of the given connections. rdb may be
// nil when the presence backend is in memory.
func New(database *sqlx.DB, rdb *redis.Client, cfg *config.Config, emailService *email.Service) (*Server, error) {
	limits, err := loadQuota(cfg)
	if err != nil {
		return nil, err
	}
	ledgerService, err := newLedger(database, cfg)
	if err != nil {
		return nil, err
	}
	registry, err := newRegistry(rdb, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())

	userRepo := user.NewRepository(database)
	counter := usage.NewCounter(database)
	entitlements := gate.New(limits, counter, ledgerService, gate.Costs{
		Mission:  cfg.MissionCost,
		Contact:  cfg.ContactCost,
		Featured: cfg.FeaturedSurcharge,
	})
	settler := settlement.New(ledgerService, emailService, cfg.LowBalanceThreshold)
	hub := presence.NewHub(registry, cfg.JWTSecret, cfg.WSAllowedOrigins)

	userHandler := user.NewHandler(user.NewService(userRepo, cfg.JWTSecret, emailService))
	missionHandler := mission.NewHandler(mission.NewService(mission.NewRepository(database), settler))
	conversations := conversation.NewService(conversation.NewRepository(database), entitlements, settler, userRepo, hub, emailService)
	hub.OnPresenceChange(conversations.NotifyPresence)
	conversationHandler := conversation.NewHandler(conversations, userRepo)
	subscriptionHandler := subscription.NewHandler(subscription.NewService(subscription.NewRepository(database), limits, counter), userRepo)
	ledgerHandler := ledger.NewHandler(ledgerService, userRepo, cfg.PaymentWebhookSecret)
	presenceHandler := presence.NewHandler(hub)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)
	router.GET("/ws", hub.ServeWS)
	router.POST("/webhooks/payments", ledgerHandler.PaymentWebhook)
	router.GET("/subscriptions/plans", subscriptionHandler.ListPlans)
	router.GET("/tokens/packages", ledgerHandler.ListPackages)

	limited := RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	public := router.Group("/auth")
	public.Use(limited)
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware, limited)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.GET("/presence", presenceHandler.Presence)

		protected.GET("/missions", missionHandler.ListOpen)
		protected.GET("/missions/mine", missionHandler.ListMine)
		protected.GET("/missions/:id", missionHandler.Get)
		protected.POST("/missions", gate.RequireEntitlement(entitlements, userRepo, quota.ActionMission), missionHandler.Create)
		protected.PATCH("/missions/:id", missionHandler.Update)
		protected.POST("/missions/:id/close", missionHandler.Close)
		protected.POST("/missions/:id/cancel", missionHandler.Cancel)
		protected.DELETE("/missions/:id", missionHandler.Delete)

		protected.GET("/conversations", conversationHandler.List)
		protected.POST("/conversations", conversationHandler.Start)
		protected.GET("/conversations/:id/messages", conversationHandler.Messages)
		protected.POST("/conversations/:id/messages", conversationHandler.Send)
		protected.POST("/conversations/:id/read", conversationHandler.MarkRead)

		protected.GET("/subscriptions/usage", subscriptionHandler.Usage)
		protected.GET("/subscriptions/history", subscriptionHandler.History)

		protected.GET("/tokens/balance", ledgerHandler.GetBalance)
		protected.GET("/tokens/transactions", ledgerHandler.ListTransactions)
		protected.GET("/tokens/verify", ledgerHandler.Verify)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(string(user.RoleAdmin)))
	{
		admin.POST("/users/:id/subscription", subscriptionHandler.Activate)
		admin.POST("/users/:id/tokens/refund", ledgerHandler.Refund)
		admin.POST("/users/:id/tokens/expire", ledgerHandler.Expire)
		admin.GET("/emails/queue", EmailQueue(emailService))
	}

	return &Server{
		router: router,
		hub:    hub,
		config: cfg,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  config.ServerReadTimeout,
			WriteTimeout: config.ServerWriteTimeout,
			IdleTimeout:  config.ServerIdleTimeout,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains websocket clients before HTTP so their presence is cleared.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadQuota(cfg *config.Config) (*quota.Table, error) {
	if cfg.QuotaFile == "" {
		return quota.DefaultTable(), nil
	}
	t, err := quota.LoadTable(cfg.QuotaFile)
	if err != nil {
		return nil, fmt.Errorf("load quota file: %w", err)
	}
	logger.Info("Quota table loaded", "path", cfg.QuotaFile)
	return t, nil
}

// NewLedgerStore picks the ledger backend named by cfg.
func NewLedgerStore(database *sqlx.DB, cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case "memory":
		logger.Warn("Using in-memory token ledger; balances are lost on restart")
		return ledger.NewMemoryStore(), nil
	case "postgres":
		if database == nil {
			return nil, errors.New("postgres ledger needs a database connection")
		}
		return ledger.NewPostgresStore(database), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func newLedger(database *sqlx.DB, cfg *config.Config) (*ledger.Service, error) {
	store, err := NewLedgerStore(database, cfg)
	if err != nil {
		return nil, err
	}
	return ledger.NewService(store), nil
}

func newRegistry(rdb *redis.Client, cfg *config.Config) (presence.Registry, error) {
	switch cfg.PresenceBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis presence needs a redis client")
		}
		return presence.NewRedisRegistry(rdb, cfg.PresenceTTL), nil
	default:
		return presence.NewMemoryRegistry(), nil
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
