package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blogescolar/blog-api/handlers"
	"github.com/blogescolar/blog-api/internal/audit"
	"github.com/blogescolar/blog-api/internal/config"
	"github.com/blogescolar/blog-api/internal/database"
	"github.com/blogescolar/blog-api/internal/events"
	"github.com/blogescolar/blog-api/internal/post/cache"
	posthandler "github.com/blogescolar/blog-api/internal/post/handler"
	"github.com/blogescolar/blog-api/internal/post/repository"
	"github.com/blogescolar/blog-api/internal/post/service"
	"github.com/blogescolar/blog-api/internal/sessions"
	"github.com/blogescolar/blog-api/internal/storage"
	"github.com/blogescolar/blog-api/internal/tokens"
	"github.com/blogescolar/blog-api/internal/users"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/blogescolar/blog-api/pkg/metrics"
	"github.com/blogescolar/blog-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.UseJSON(cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: mongo=%v redis=%v rabbitmq=%v minio=%v",
		cfg.MongoDB.URI != "", cfg.Redis.Addr() != "", cfg.RabbitMQ.URL != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; cache, blacklist and Redis sessions disabled", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
			sessions.SetBlacklistClient(rdb)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db = client.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			logger.Warnf("failed to create user indexes: %v", err)
		}
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// users and sessions
	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	var sessionRepo sessions.Repository = sessions.NewMemoryRepository()
	if db != nil {
		userRepo = users.NewMongoUserRepository(db.Collection("users"))
		mrepo := sessions.NewMongoRepository(db.Collection("sessions"))
		if err := mrepo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to create session indexes: %v", err)
		}
		sessionRepo = mrepo
	}
	if rdb != nil {
		sessionRepo = sessions.NewRedisRepository(rdb, "")
	}
	userSvc := users.NewService(userRepo)
	sessionsSvc := sessions.NewService(sessionRepo, cfg.JWT.RefreshTokenTTL)
	issuer := tokens.NewIssuerFromConfig(cfg)

	// posts
	var opts []service.Option
	pub := events.NewNoop()
	if cfg.RabbitMQ.URL != "" {
		rp, err := events.NewRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Warnf("failed to connect to RabbitMQ: %v; events are dropped", err)
		} else {
			pub = rp
			logger.Infof("publishing events to exchange %q", cfg.RabbitMQ.Exchange)
		}
	}
	defer pub.Close()
	opts = append(opts, service.WithPublisher(pub))

	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("failed to initialize MinIO: %v; image uploads disabled", err)
		} else {
			opts = append(opts, service.WithImageStore(st))
			checks["minio"] = st.Ping
		}
	}

	var postSvc service.Service
	if db != nil {
		opts = append(opts, service.WithAudit(audit.NewMongoStore(db)))
		repo := repository.NewMongoRepo(db.Collection("posts"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to create post indexes: %v", err)
		}
		postSvc = service.New(repo, opts...)
	} else {
		postSvc = service.NewMemoryService(opts...)
	}
	if rdb != nil {
		postSvc = service.NewCachedService(postSvc, cache.NewPostCache(rdb, cfg.Cache.PostTTL))
	}
	checks["posts"] = postSvc.Ping

	// router
	r := gin.New()
	r.Use(middleware.RequestID(), gin.Recovery(), middleware.Metrics(), middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.RateLimit.Enabled {
		// authenticated callers get their own bucket
		r.Use(middleware.Identify(issuer))
		if cfg.RateLimit.UseRedis && rdb != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API DE POSTS!")
	})
	handlers.RegisterHealth(r, checks)
	handlers.RegisterSwagger(r)
	handlers.NewAuthHandler(userSvc, sessionsSvc, issuer).Register(r)
	posthandler.RegisterPostRoutes(r, postSvc, issuer)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("blog API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
