package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/visualscripts/license-api/internal/config"
	"github.com/visualscripts/license-api/internal/database"
	"github.com/visualscripts/license-api/internal/engine"
	"github.com/visualscripts/license-api/internal/handler"
	"github.com/visualscripts/license-api/internal/middleware"
	"github.com/visualscripts/license-api/internal/queue"
	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/router"
	queue_publisher "github.com/visualscripts/license-api/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.InitSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema init: %v", err)
	}
	cancel()

	subs := repository.NewSubscriberRepo(db)
	keys := repository.NewKeyRepo(db)
	bans := repository.NewBlacklistRepo(db)
	scripts := repository.NewScriptRepo(db)
	journal := repository.NewActivityRepo(db)
	devices := repository.NewDeviceRepo(db)
	admins := repository.NewAdminRepo(db)
	tokens := repository.NewTokenRepo(db)

	bootstrapOperators(db, admins, cfg.BcryptCost)

	eng := engine.New(db, subs, keys, bans, scripts, journal, devices,
		engine.PolicyFromConfig(cfg), queue_publisher.Publisher{})

	go func() {
		if err := queue.StartTamperConsumer(cfg.TamperWebhookURL); err != nil {
			log.Printf("tamper consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	rdb := config.NewRedisClient()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	authH := handler.NewAuthHandler(cfg, admins, tokens)
	publicH := handler.NewPublicHandler(eng)
	panelH := handler.NewPanelHandler(eng)
	adminH := handler.NewAdminHandler(eng)

	router.RegisterPublic(e, publicH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPanel(e, panelH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret, cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s mode=%s mismatch=%s)", addr, cfg.Env, cfg.AuthMode, cfg.MismatchPolicy)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// bootstrapOperators creates the initial operator accounts from the
// environment when they do not exist yet. Without at least one ADMIN
// the management surface is unreachable on a fresh database.
func bootstrapOperators(db *sql.DB, admins *repository.AdminRepo, bcryptCost int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seed := func(userEnv, passEnv, role string) {
		username := os.Getenv(userEnv)
		password := os.Getenv(passEnv)
		if username == "" || password == "" {
			return
		}
		if _, err := admins.GetByUsername(ctx, username); err == nil {
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("bootstrap: lookup %s failed: %v", username, err)
			return
		}
		if _, err := admins.Create(ctx, username, password, role, bcryptCost); err != nil {
			log.Printf("bootstrap: create %s failed: %v", username, err)
			return
		}
		log.Printf("bootstrap: created %s operator %q", role, username)
	}
	seed("ADMIN_USERNAME", "ADMIN_PASSWORD", "ADMIN")
	seed("PANEL_USERNAME", "PANEL_PASSWORD", "PANEL")
}
