package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garrettallen/cardboards/config"
	"github.com/garrettallen/cardboards/internal/boardtree"
	"github.com/garrettallen/cardboards/internal/database"
	"github.com/garrettallen/cardboards/internal/database/repository"
	"github.com/garrettallen/cardboards/internal/handlers"
	"github.com/garrettallen/cardboards/internal/logging"
	"github.com/garrettallen/cardboards/internal/middleware"
	"github.com/garrettallen/cardboards/internal/services"
	"github.com/garrettallen/cardboards/pkg/migration"
)

const accessTokenDuration = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(filepath.Join(".", "config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		db, err = database.NewDB(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := migration.RunMigrations(db, cfg.MigrationsPath, migration.Up, logger); err != nil {
			logger.Warn("failed to run migrations", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set, blocks are kept in memory")
	}

	app := NewApp(ctx, db, cfg, logger)
	defer app.Hub.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: app.Router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Websocket streams end with their subscriptions
		app.Hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}

	logger.Info("server exiting")
}

// App represents the application
type App struct {
	Router   *gin.Engine
	Config   *config.Config
	DB       *sqlx.DB
	Logger   *zap.Logger
	Hub      *services.UpdateHub
	Blocks   repository.BlockRepository
	Services *Services
	Handlers *Handlers
}

// Services holds all service instances
type Services struct {
	Block      services.BlockService
	Tree       services.TreeService
	Token      services.TokenService
	Attachment services.AttachmentService
}

// Handlers holds all handler instances
type Handlers struct {
	Board      *handlers.BoardHandler
	Updates    *handlers.UpdatesHandler
	Attachment *handlers.AttachmentHandler
}

// NewApp creates a new application instance. A nil db keeps blocks in memory.
func NewApp(ctx context.Context, db *sqlx.DB, cfg *config.Config, logger *zap.Logger) *App {
	app := &App{
		DB:     db,
		Config: cfg,
		Logger: logger,
	}

	app.initRepositories()
	app.initServices(ctx)
	app.initHandlers()
	app.setupRouter()

	return app
}

func (a *App) initRepositories() {
	if a.DB != nil {
		a.Blocks = repository.NewBlockRepository(a.DB)
		return
	}
	a.Blocks = repository.NewMemoryBlockRepository()
}

func (a *App) initServices(ctx context.Context) {
	jwtSecret := a.Config.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-in-production" // development only, production config requires JWT_SECRET
	}

	a.Hub = services.NewUpdateHub(a.Config.UpdateBuffer, a.Logger)
	builder := boardtree.NewBuilder(a.Logger)

	a.Services = &Services{}
	a.Services.Block = services.NewBlockService(a.Blocks, a.Hub, a.Logger)
	a.Services.Tree = services.NewTreeService(a.Services.Block, a.Hub, builder, a.Config.EnsureSchema, a.Logger)
	a.Services.Token = services.NewTokenService(jwtSecret, accessTokenDuration)

	if a.Config.AttachmentsEnabled() {
		attachments, err := services.NewAttachmentService(ctx, a.Config)
		if err != nil {
			a.Logger.Error("attachment storage unavailable", zap.Error(err))
		} else {
			a.Services.Attachment = attachments
		}
	}
}

func (a *App) initHandlers() {
	a.Handlers = &Handlers{
		Board:      handlers.NewBoardHandler(a.Services.Block, a.Services.Tree, a.Logger),
		Updates:    handlers.NewUpdatesHandler(a.Services.Tree, a.Config.AllowedOrigins, a.Logger),
		Attachment: handlers.NewAttachmentHandler(a.Services.Block, a.Services.Attachment, a.Logger),
	}
}

func (a *App) setupRouter() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(a.Logger.Named("http")))
	router.Use(middleware.CORS(a.Config.AllowedOrigins))

	authMiddleware := middleware.AuthMiddleware(a.Services.Token, a.Logger)
	globalRateLimiter := middleware.GlobalRateLimiter(a.Config.RateLimit)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   a.Config.Version,
			"timestamp": time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(globalRateLimiter)

	a.Handlers.Board.RegisterRoutes(api, authMiddleware)
	a.Handlers.Updates.RegisterRoutes(api)
	a.Handlers.Attachment.RegisterRoutes(api, authMiddleware)

	a.Router = router
}
