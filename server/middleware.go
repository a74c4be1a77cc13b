package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/existflow/topia/internal/logger"
	"github.com/labstack/echo/v4"
)

const userKey = "user"

// requestLogger logs each request and its response
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		err := next(c)

		res := c.Response()
		s.log.Info("HTTP Response",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("request_id", req.Header.Get(echo.HeaderXRequestID)),
			logger.F("duration", time.Since(start).String()))

		return err
	}
}

// authMiddleware checks the bearer token and loads its user
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get token from Authorization header
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return message(c, http.StatusUnauthorized, "Not authorized, no token")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			return message(c, http.StatusUnauthorized, "Not authorized, no token")
		}

		userID, err := s.tokens.parse(token)
		if err != nil {
			return message(c, http.StatusUnauthorized, "Not authorized, token failed")
		}

		u, err := s.userByID(userID)
		if errors.Is(err, sql.ErrNoRows) {
			return message(c, http.StatusUnauthorized, "Not authorized, token failed")
		}
		if err != nil {
			return s.internal(c, "Failed to load user", err)
		}

		c.Set(userKey, u)
		return next(c)
	}
}

// adminMiddleware rejects non-admin users; it runs after authMiddleware
func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentUser(c).IsAdmin {
			return message(c, http.StatusForbidden, "Not authorized as an admin")
		}
		return next(c)
	}
}
