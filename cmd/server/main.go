package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-management-backend/internal/config"
	"user-management-backend/internal/database"
	"user-management-backend/internal/handler"
	"user-management-backend/internal/ratelimit"
	"user-management-backend/internal/repository"
	"user-management-backend/internal/repository/mongostore"
	"user-management-backend/internal/service"
	"user-management-backend/pkg/token"
	"user-management-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("db_driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Open stores
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 3. Token codec and password hasher
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTokenExpiry,
		RefreshTTL:    cfg.JWT.RefreshTokenExpiry,
	})
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	hasher := utils.NewPasswordHasher(cfg.Security.BcryptCost)

	// 4. Initialize services
	authOpts := []service.AuthOption{service.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login throttling fails open", slog.String("error", err.Error()))
		}
		authOpts = append(authOpts, service.WithLoginLimiter(ratelimit.New(rdb, ratelimit.Config{
			MaxAttempts: cfg.Security.LoginMaxAttempts,
			Cooldown:    cfg.Security.LoginCooldown,
		})))
	}

	authService := service.NewAuthService(st.users, st.tokens, st.audit, codec, hasher, authOpts...)
	userService := service.NewUserService(st.users, st.audit, hasher, logger)

	// 5. Setup Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(authService, cfg.JWT.RefreshTokenExpiry, cfg.Server.CookieSecure, logger),
		Users:          handler.NewUserHandler(userService, logger),
		Verifier:       authService,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         st.health,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 6. Background sweeper for SQL stores; MongoDB expires records with a TTL index
	if st.purger != nil {
		sweeper := service.NewSweeperService(st.purger, cfg.Security.TokenSweepInterval, logger)
		g.Go(func() error {
			sweeper.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server starting", slog.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// 7. Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

type stores struct {
	users  service.UserStore
	tokens service.RefreshTokenStore
	audit  service.AuditStore
	purger service.ExpiredTokenPurger
	health handler.HealthCheck
	close  func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == config.DriverMongo {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		ms, err := mongostore.Connect(connectCtx, cfg.Database.MongoURI, cfg.Database.Database)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:  ms,
			tokens: ms,
			audit:  ms,
			health: ms.Ping,
			close: func() {
				_ = ms.Close(context.Background())
			},
		}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}

	tokens := repository.NewRefreshTokenRepo(db)
	return &stores{
		users:  repository.NewUserRepo(db),
		tokens: tokens,
		audit:  repository.NewAuditRepo(db),
		purger: tokens,
		health: sqlDB.PingContext,
		close: func() {
			_ = sqlDB.Close()
		},
	}, nil
}
