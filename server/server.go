// Package server is a development backend for the storefront REST contract:
// auth, profile, catalog, orders, coupons and the admin user list. It runs on
// SQLite by default and on postgres when given a postgres:// URL.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/existflow/topia/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config holds server settings
type Config struct {
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	UploadDir   string

	// Optional admin account created at startup
	AdminEmail    string
	AdminPassword string

	Logger *logger.Logger
}

// Server is the dev backend
type Server struct {
	db        *database
	echo      *echo.Echo
	tokens    *tokenIssuer
	uploadDir string
	log       *logger.Logger
}

// New opens the database, migrates, seeds and sets up routes
func New(cfg Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Server{
		db:        db,
		tokens:    newTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL),
		uploadDir: cfg.UploadDir,
		log:       cfg.Logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	if err := s.seed(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Setup Echo
	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)
	e.Static("/uploads", s.uploadDir)

	api := e.Group("/api")

	// Public endpoints
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/products", s.handleListProducts)
	api.GET("/products/:id", s.handleGetProduct)
	api.GET("/categories", s.handleListCategories)
	api.POST("/coupons/validate", s.handleValidateCoupon)

	// Protected endpoints
	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/users/profile", s.handleGetProfile)
	protected.PUT("/users/profile", s.handleUpdateProfile)
	protected.POST("/orders", s.handleCreateOrder)
	protected.GET("/orders/mine", s.handleMyOrders)
	protected.GET("/orders/:id", s.handleGetOrder)

	// Admin endpoints
	admin := protected.Group("")
	admin.Use(s.adminMiddleware)
	admin.GET("/users", s.handleListUsers)
	admin.POST("/products", s.handleCreateProduct)
	admin.PUT("/orders/:id/status", s.handleUpdateOrderStatus)

	s.echo = e
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.db.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// message is the error body every failure uses
func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}

// errorHandler renders echo's own errors (404 routes, bind failures) in the
// same {message} shape as handler errors.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		s.log.Error("Unhandled error", logger.Err(err))
	}
	_ = message(c, status, msg)
}

// internal logs err and answers 500
func (s *Server) internal(c echo.Context, what string, err error) error {
	s.log.Error(what,
		logger.F("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		logger.Err(err))
	return message(c, http.StatusInternalServerError, "Internal server error")
}
