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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ctp-api/api/swagger"
	"github.com/noah-isme/ctp-api/internal/handler"
	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/repository"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/cache"
	"github.com/noah-isme/ctp-api/pkg/config"
	"github.com/noah-isme/ctp-api/pkg/database"
	"github.com/noah-isme/ctp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ctp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ctp-api/pkg/middleware/requestid"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

// @title Computational Thinking Platform API
// @version 1.0.0
// @description Users, roles and permissions plus courses, exercises, submissions and leaderboards.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.ReadinessCheck{}

	var repos stores
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logr.Warn("using in-memory storage; data is lost on restart")
		repos = memoryStores()
	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}
		}
		checks["postgres"] = db.PingContext
		repos = postgresStores(db)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	if cfg.Auth.SeedDefaults {
		seeder := service.NewSeeder(repos.permissions, repos.roles, repos.users, service.SeedConfig{
			AdminEmail:    cfg.Auth.SeedAdminEmail,
			AdminPassword: cfg.Auth.SeedAdminPassword,
		}, logr)
		if err := seeder.EnsureDefaults(ctx); err != nil {
			return fmt.Errorf("seed defaults: %w", err)
		}
	}

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Leaderboard.CacheTTL, logr, redisClient != nil)

	scoreboard := service.NewScoreboardService(repos.resolutions, repos.activities, broadcaster(redisClient, logr), service.ScoreboardConfig{
		Workers: cfg.Scoreboard.Workers,
		Retries: cfg.Scoreboard.Retries,
	}, metrics, logr)
	scoreboard.Start(ctx)
	defer scoreboard.Stop()

	objectStore, localFiles, err := imageStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init image storage: %w", err)
	}

	users := service.NewUserService(repos.users, repos.roles, validate, logr)
	auth := service.NewAuthService(repos.users, users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		DefaultRole:        cfg.Auth.DefaultRole,
	})
	resolutions := service.NewResolutionService(repos.resolutions, service.ResolutionDeps{
		Students:   repos.students,
		Exercises:  repos.exercises,
		Professors: repos.professors,
		Groups:     repos.groups,
		Audit:      repos.users,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Scoreboard: scoreboard,
	}, service.LeaderboardConfig{Size: cfg.Leaderboard.Size, CacheTTL: cfg.Leaderboard.CacheTTL}, validate, logr)
	images := service.NewImageService(objectStore, service.ImageConfig{
		MaxFileSizeBytes:  cfg.Images.MaxFileSizeBytes,
		AllowedExtensions: cfg.Images.AllowedExtensions,
		SignedURLTTL:      cfg.Images.SignedURLTTL,
		Timeout:           cfg.Images.Timeout,
	}, metrics, logr)

	imageHandler := handler.NewImageHandler(images, nil)
	if localFiles != nil {
		imageHandler = handler.NewImageHandler(images, localFiles)
	}

	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(auth),
		Permissions: handler.NewPermissionHandler(service.NewPermissionService(repos.permissions, repos.users, validate, logr)),
		Roles:       handler.NewRoleHandler(service.NewRoleService(repos.roles, repos.permissions, repos.users, validate, logr)),
		Users:       handler.NewUserHandler(users),
		Semesters:   handler.NewSemesterHandler(service.NewSemesterService(repos.semesters, validate, logr)),
		Groups:      handler.NewGroupHandler(service.NewGroupService(repos.groups, repos.semesters, validate, logr)),
		Professors:  handler.NewProfessorHandler(service.NewProfessorService(repos.professors, repos.users, repos.activities, validate, logr)),
		Students:    handler.NewStudentHandler(service.NewStudentService(repos.students, repos.users, validate, logr)),
		Activities:  handler.NewActivityHandler(service.NewActivityService(repos.activities, repos.groups, repos.professors, validate, logr)),
		Exercises:   handler.NewExerciseHandler(service.NewExerciseService(repos.exercises, repos.activities, validate, logr)),
		Resolutions: handler.NewResolutionHandler(resolutions),
		Images:      imageHandler,
		Scoreboard:  handler.NewScoreboardHandler(scoreboard),
		Metrics:     handler.NewMetricsHandler(metrics, checks),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metrics))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, auth, handlers)
	if cfg.Env != config.EnvProduction {
		r.GET(cfg.APIPrefix+"/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func broadcaster(client *redis.Client, logr *zap.Logger) service.ScoreboardBroadcaster {
	if client == nil {
		return repository.NewLocalBroadcaster()
	}
	return repository.NewRedisBroadcaster(client, logr)
}

// imageStore builds the configured backend. The local backend is also returned as the
// signed file source served by the API.
func imageStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, *storage.LocalStore, error) {
	if cfg.Images.Driver == config.ImagesDriverS3 {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			Prefix:       cfg.S3.Prefix,
			MaxRetries:   cfg.Images.MaxRetries,
		})
		return store, nil, err
	}

	signer := storage.NewSignedURLSigner(cfg.Images.SignedURLSecret, cfg.Images.SignedURLTTL)
	store, err := storage.NewLocalStore(cfg.Images.LocalDir, cfg.APIPrefix+"/files/images/", signer)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}
