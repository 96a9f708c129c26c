// seed inserts a superadmin account and the default session timeout settings
// for local development. Idempotent: skips anything that already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"eco-puntos/backend/internal/config"
	"eco-puntos/backend/internal/db"
	"eco-puntos/backend/internal/security"
	settingsdomain "eco-puntos/backend/internal/settings/domain"
	userdomain "eco-puntos/backend/internal/user/domain"
	userrepo "eco-puntos/backend/internal/user/repository"
)

const (
	adminEmail    = "admin@ecopuntos.dev"
	adminPassword = "admin123" // dev only
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(conn)
	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed: lookup admin: %v", err)
	}
	if existing == nil {
		hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(adminPassword))
		if err != nil {
			log.Fatalf("seed: hash password: %v", err)
		}
		now := time.Now().UTC()
		admin := &userdomain.User{
			ID:            uuid.New().String(),
			Email:         adminEmail,
			Username:      "superadmin",
			PasswordHash:  hash,
			Role:          userdomain.RoleAdmin,
			Superuser:     true,
			Active:        true,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := users.Create(ctx, admin); err != nil {
			log.Fatalf("seed: create admin: %v", err)
		}
		log.Printf("seed: created superadmin %s", adminEmail)
	} else {
		log.Printf("seed: superadmin %s already exists, skipping", adminEmail)
	}

	// Default session timeouts, stored as seconds. The repository falls back
	// to these values anyway; seeding them makes the settings editable.
	const insertSetting = `
		INSERT INTO configurations (id, category, name, value, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (category, name) DO NOTHING`
	now := time.Now().UTC()
	settings := []struct {
		name        string
		value       string
		description string
	}{
		{settingsdomain.KeyAdminTimeout, "600", "Tiempo de sesión para administradores (segundos)"},
		{settingsdomain.KeyUserTimeout, "900", "Tiempo de sesión para usuarios (segundos)"},
	}
	for _, s := range settings {
		if _, err := conn.ExecContext(ctx, insertSetting,
			uuid.New().String(), settingsdomain.CategorySessions, s.name, s.value, s.description, now); err != nil {
			log.Fatalf("seed: setting %s: %v", s.name, err)
		}
	}
	log.Println("seed: done")
}
