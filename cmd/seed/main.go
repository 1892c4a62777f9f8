package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/studycircle/studycircle-api/config"
	"github.com/studycircle/studycircle-api/pkg/helpers"
)

// Seeds a verified demo account for local development.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "demo@studycircle.dev"
	nickname := "demo"
	password := "password123"

	hasher := &helpers.BcryptHasher{}
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO accounts (email, nickname, password_hash, email_verified, joined_at,
			study_created_by_web, enrollment_result_by_web, study_updated_by_web)
		VALUES ($1, $2, $3, true, $4, true, true, true)
		ON CONFLICT (email) DO UPDATE SET nickname = EXCLUDED.nickname
		RETURNING id
	`, email, nickname, hash, time.Now()).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
	fmt.Printf("seeded account: id=%s email=%s nickname=%s password=%s\n", id, email, nickname, password)
}
