package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/server"
	"github.com/joho/godotenv"
)

type config struct {
	Port          string        `env:"PORT" envDefault:"5000"`
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"topia.db"`
	JWTSecret     string        `env:"JWT_SECRET,required"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"720h"`
	UploadDir     string        `env:"UPLOAD_DIR" envDefault:"uploads"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile       string        `env:"LOG_FILE"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l, err := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		FilePath:   cfg.LogFile,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer l.Close()

	srv, err := server.New(server.Config{
		DatabaseURL:   cfg.DatabaseURL,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		UploadDir:     cfg.UploadDir,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Logger:        l,
	})
	if err != nil {
		l.Error("Failed to create server", logger.Err(err))
		os.Exit(1)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			l.Warn("Error closing server", logger.Err(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		l.Info("TOPIA dev backend starting", logger.F("port", cfg.Port))
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server failed", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn("Shutdown failed", logger.Err(err))
	}
	l.Info("TOPIA dev backend stopped")
}
