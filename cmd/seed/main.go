// seed creates a demo dashboard user for local development.
// Requires DATABASE_URL; idempotent, so re-running is safe.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/traylorre/sentiment-auth/internal/config"
	"github.com/traylorre/sentiment-auth/internal/db"
	"github.com/traylorre/sentiment-auth/internal/security"
	userdomain "github.com/traylorre/sentiment-auth/internal/user/domain"
	userrepo "github.com/traylorre/sentiment-auth/internal/user/repository"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "Demo-password-123!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(database)
	existing, err := users.GetByEmail(ctx, demoEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		fmt.Printf("seed: demo user already exists (%s)\n", existing.ID)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(demoPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        demoEmail,
		Name:         "Demo User",
		PasswordHash: hash,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("seed: create user: %v", err)
	}
	fmt.Printf("seed: created demo user %s (%s / %s)\n", user.ID, demoEmail, demoPassword)
}
