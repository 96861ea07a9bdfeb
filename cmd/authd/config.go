package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/etikos/authkit"
)

type serviceConfig struct {
	Addr          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	JWTTTLMinutes int
	AuditBaseURL  string
	Engine        authkit.Config
}

func loadConfig() (serviceConfig, error) {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg := serviceConfig{
		Addr:          envOr("AUTHD_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTLMinutes: envIntOr("JWT_TTL_MINUTES", 60),
		AuditBaseURL:  envOr("AUDIT_BASE_URL", "http://localhost:8081"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}

	engine := authkit.DefaultConfig()
	engine.Audit.BaseURL = cfg.AuditBaseURL
	if ttl := envIntOr("PENDING_LOGIN_TTL_SECONDS", 0); ttl > 0 {
		engine.PendingLogin.TTL = time.Duration(ttl) * time.Second
	}
	if attempts := envIntOr("PENDING_LOGIN_MAX_ATTEMPTS", 0); attempts > 0 {
		engine.PendingLogin.MaxAttempts = attempts
	}
	if issuer := os.Getenv("TOTP_ISSUER"); issuer != "" {
		engine.TOTP.Issuer = issuer
	}
	cfg.Engine = engine

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
