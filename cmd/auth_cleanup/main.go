package main

import (
	"context"
	"log"
	"os"
	"time"

	"devlog/internal/database"
	"devlog/internal/domain"
	"devlog/internal/repository"
)

// Retention sweeper. Normal flow never hard-deletes session rows; this purges
// expired sessions, long-revoked sessions and stale verification/reset tokens.
func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	retention := 30 * 24 * time.Hour
	if v := os.Getenv("SESSION_RETENTION"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid SESSION_RETENTION %q: %v", v, err)
		}
		retention = parsed
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx := context.Background()
	sessions := repository.NewSessionRepository(db)

	purged, err := sessions.DeleteStale(ctx, retention)
	if err != nil {
		log.Fatalf("cleanup sessions failed: %v", err)
	}

	now := time.Now().UTC()
	verify := db.WithContext(ctx).Model(&domain.Member{}).
		Where("email_verification_expires_at < ?", now).
		Updates(map[string]any{
			"email_verification_token":      nil,
			"email_verification_expires_at": nil,
		})
	if verify.Error != nil {
		log.Fatalf("cleanup stale verification tokens failed: %v", verify.Error)
	}

	reset := db.WithContext(ctx).Model(&domain.Member{}).
		Where("password_reset_expires_at < ?", now).
		Updates(map[string]any{
			"password_reset_token":      nil,
			"password_reset_expires_at": nil,
		})
	if reset.Error != nil {
		log.Fatalf("cleanup stale reset tokens failed: %v", reset.Error)
	}

	log.Printf("auth cleanup completed: sessions=%d verification_tokens=%d reset_tokens=%d",
		purged, verify.RowsAffected, reset.RowsAffected)
}
