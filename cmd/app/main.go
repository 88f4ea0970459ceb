package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/wichananm65/nutribuddy-web/internal/api"
	"github.com/wichananm65/nutribuddy-web/internal/config"
	"github.com/wichananm65/nutribuddy-web/internal/dashboard"
	"github.com/wichananm65/nutribuddy-web/internal/logging"
	"github.com/wichananm65/nutribuddy-web/internal/session"
	"github.com/wichananm65/nutribuddy-web/internal/user"
	"github.com/wichananm65/nutribuddy-web/internal/web"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	repo, closeRepo := mustSessionRepository(cfg, log)
	defer closeRepo()

	sessions := session.NewService(repo, sessionSecret(cfg, log), cfg.SessionTTL, log.Named("session"))
	backend := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, log.Named("api"))

	userHandler := user.NewHandler(user.NewService(backend, sessions, log.Named("user")), sessions)
	dashboardHandler := dashboard.NewHandler(dashboard.NewService(backend, sessions, log.Named("dashboard")))

	app := fiber.New(fiber.Config{
		Views:                 web.NewEngine(),
		DisableStartupMessage: !cfg.Debug,
	})
	setupCORS(app, cfg.AllowOrigins)
	app.Use(logging.RequestLogger(log.Named("http")))
	app.Use(sessions.Middleware())

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.RunSweeper(sweepCtx, cfg.SweepInterval)

	guard := sessions.RequireAuth()
	userHandler.RegisterPublicRoutes(app)
	userHandler.RegisterProtectedRoutes(app, guard)
	dashboardHandler.RegisterProtectedRoutes(app, guard)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		stopSweep()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", cfg.Addr), zap.String("api", cfg.APIBaseURL))
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func setupCORS(app *fiber.App, origins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
}

// mustSessionRepository stores sessions in Postgres when DATABASE_URL is set
// and in memory otherwise.
func mustSessionRepository(cfg config.Config, log *zap.Logger) (session.Repository, func()) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, sessions are kept in memory")
		return session.NewInMemoryRepository(), func() {}
	}

	db := mustOpenDB(cfg.DatabaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := session.EnsureSchema(ctx, db); err != nil {
		log.Fatal("failed to prepare session table", zap.Error(err))
	}
	return session.NewPostgresRepository(db), func() { db.Close() }
}

func mustOpenDB(dbURL string) *sql.DB {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	return db
}

func sessionSecret(cfg config.Config, log *zap.Logger) []byte {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret)
	}
	log.Warn("SESSION_SECRET is not set, using a random secret; sessions end on restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return secret
}
