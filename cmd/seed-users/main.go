package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Seeds STATIC_USERS into the users table so CREDENTIAL_SOURCE=postgres
// accepts the same accounts.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	authService := service.NewAuthService(cfg, service.NewDatabaseCredentials(userRepo))

	usernames := make([]string, 0, len(cfg.StaticUsers))
	for name := range cfg.StaticUsers {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	fmt.Printf("=== Seeding %d Users ===\n", len(usernames))

	seeded := 0
	for _, name := range usernames {
		hash, err := authService.HashPassword(cfg.StaticUsers[name])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash password")
		}

		user := &model.User{Username: name, PasswordHash: hash}
		if err := userRepo.Upsert(ctx, user); err != nil {
			log.Error().Err(err).Str("username", name).Msg("Failed to seed user")
			continue
		}
		seeded++
		fmt.Printf("  %-20s id=%d\n", name, user.ID)
	}

	fmt.Printf("Done. %d/%d users seeded.\n", seeded, len(usernames))
}
