package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"campusmarket/internal/db"
	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

const bcryptCost = 10

// seedConfig is the subset of settings the seed command needs. It does not
// require a signing secret.
type seedConfig struct {
	MySQLDSN      string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/campusmarket?charset=utf8mb4&parseTime=True&loc=Local"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var cfg seedConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatalf("config: %v", err)
	}
	email := flag.String("email", cfg.AdminEmail, "admin email (ADMIN_EMAIL)")
	password := flag.String("password", cfg.AdminPassword, "admin password (ADMIN_PASSWORD)")
	flag.Parse()

	admin, err := newAdmin(*email, *password)
	if err != nil {
		logger.Fatalf("admin: %v", err)
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repository.NewAdminRepository(gormDB).Upsert(ctx, admin); err != nil {
		logger.Fatalf("Failed to seed admin: %v", err)
	}
	logger.WithField("email", admin.Email).Info("Admin account ready")
}

// newAdmin normalizes the email the way logins do and hashes the password.
func newAdmin(email, password string) (*model.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &model.Admin{Email: email, PasswordHash: string(hash)}, nil
}
