package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"devlog/internal/config"
	"devlog/internal/database"
	"devlog/internal/domain"
	"devlog/internal/middleware"
	"devlog/internal/modules/auth"
	jwtsvc "devlog/internal/pkg/jwt"
	"devlog/internal/pkg/vault"
	"devlog/internal/repository"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&domain.Member{}, &domain.Session{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	v, err := vault.New(cfg.EmailEncryptionKey, cfg.EmailEncryptionSalt, cfg.EmailLookupPepper)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	memberRepo := repository.NewMemberRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	codec := jwtsvc.New(cfg.JWTSecret)
	mailer := auth.NewDevConsoleMailer(cfg.DevMailEnabled)

	authService := auth.NewService(
		memberRepo,
		sessionRepo,
		v,
		codec,
		mailer,
		cfg.RefreshTokenPepper,
		cfg.RefreshTTL,
		cfg.RefreshKeepAliveTTL,
		cfg.VerifyTokenTTL,
		cfg.ResetTokenTTL,
	)
	authHandler := auth.NewHandler(authService)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(codec, memberRepo))
		{
			authHandler.RegisterProtectedRoutes(protected)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.POST("/members/:id/logout-all", authHandler.ForceLogoutAll)
			}
		}
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
