package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Kamin0/CBT-OnlineSystem/internal/api/handlers"
	"github.com/Kamin0/CBT-OnlineSystem/internal/api/middleware"
	"github.com/Kamin0/CBT-OnlineSystem/internal/config"
	"github.com/Kamin0/CBT-OnlineSystem/internal/repository"
	"github.com/Kamin0/CBT-OnlineSystem/internal/service"
	"github.com/Kamin0/CBT-OnlineSystem/internal/store"
	"github.com/Kamin0/CBT-OnlineSystem/internal/websocket"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/database"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/distributed"
	jwtutil "github.com/Kamin0/CBT-OnlineSystem/pkg/jwt"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/logger"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/ratelimit"
)

// SetupRouter API 라우터 설정. 반환된 cleanup은 종료 시 백그라운드
// 컴포넌트(sweeper, 이벤트 릴레이)를 중지한다.
func SetupRouter(cfg *config.Config, db *database.DB, redisClient *redis.Client) (*gin.Engine, func()) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Repository / Store 초기화
	indexRepo := repository.NewSessionIndexRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionStore := store.NewSessionStore(redisClient)

	// Token Authority
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	// WebSocket Hub 초기화 및 시작
	hub := websocket.NewHub()
	go hub.Run()

	// 세션 이벤트 릴레이 (Redis Pub/Sub → 각 인스턴스의 로컬 허브)
	relay := distributed.NewEventRelay(redisClient, logger.L())
	if err := relay.Start(context.Background(), func(event distributed.SessionEvent) {
		hub.Publish(event.Type, event.Payload)
	}); err != nil {
		logger.Warn("Failed to start session event relay", "error", err)
	}

	// Service 초기화
	locker := distributed.NewRedisSessionLocker(redisClient, cfg.SessionLockTTL)
	engine := service.NewEngine(indexRepo, sessionStore, userRepo, locker, relay)
	accountService := service.NewAccountService(userRepo, jwtManager)

	// 고아 페이로드 sweeper 시작
	sweeper := service.NewSweeper(indexRepo, sessionStore, cfg.SweepInterval)
	sweeper.Start()

	// Rate limiter
	limiter := ratelimit.NewRedisRateLimiter(redisClient)

	// Handler 초기화
	sessionHandler := handlers.NewSessionHandler(engine)
	authHandler := handlers.NewAuthHandler(accountService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(middleware.AuthRateLimit(limiter))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Session directory routes
	router.POST("/session",
		middleware.RequireRole(jwtManager, jwtutil.RoleServer),
		sessionHandler.CreateSession)
	router.GET("/session/:username",
		middleware.RequireRole(jwtManager, jwtutil.RoleClient),
		middleware.PlacementRateLimit(limiter),
		sessionHandler.RequestPlacement)
	router.POST("/connect",
		middleware.RequireRole(jwtManager, jwtutil.RoleClient),
		sessionHandler.JoinSession)
	router.DELETE("/session/:sessionId",
		middleware.RequireRole(jwtManager, jwtutil.RoleServer),
		sessionHandler.RemoveSession)

	// 세션 이벤트 피드 (유효한 토큰이면 역할 무관)
	router.GET("/ws",
		middleware.RequireRole(jwtManager, jwtutil.RoleWildcard),
		wsHandler.HandleWebSocket)

	cleanup := func() {
		sweeper.Stop()
		relay.Stop()
	}

	return router, cleanup
}
