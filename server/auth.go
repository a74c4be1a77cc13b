package server

import (
	"database/sql"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userRow struct {
	model.User
	passwordHash string
}

const userColumns = `id, name, email, phone, role, points, tier, password_hash`

func scanUser(row interface{ Scan(...any) error }) (*userRow, error) {
	var u userRow
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Points, &u.Tier, &u.passwordHash)
	if err != nil {
		return nil, err
	}
	u.DeriveAdmin()
	return &u, nil
}

func (s *Server) userByID(id string) (*model.User, error) {
	u, err := scanUser(s.db.queryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &u.User, nil
}

func currentUser(c echo.Context) *model.User {
	return c.Get(userKey).(*model.User)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// createUser inserts a user; the caller has validated the input
func (s *Server) createUser(name, email, phone, password, role string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := model.User{ID: uuid.NewString(), Name: name, Email: email, Phone: phone, Role: role}
	ts := now()
	_, err = s.db.exec(`
		INSERT INTO users (id, name, email, phone, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Phone, string(hash), u.Role, ts, ts,
	)
	if err != nil {
		return nil, err
	}
	u.DeriveAdmin()
	return &u, nil
}

// handleRegister creates an account. It does not log the user in.
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	// Validate
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return message(c, http.StatusBadRequest, "Name, email and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return message(c, http.StatusBadRequest, "Invalid email address")
	}
	if len(req.Password) < minPasswordLen {
		return message(c, http.StatusBadRequest, "Password must be at least 6 characters")
	}

	var exists int
	err := s.db.queryRow(`SELECT COUNT(*) FROM users WHERE email = ?`, req.Email).Scan(&exists)
	if err != nil {
		return s.internal(c, "Failed to check email", err)
	}
	if exists > 0 {
		return message(c, http.StatusBadRequest, "User already exists")
	}

	u, err := s.createUser(req.Name, req.Email, req.Phone, req.Password, "user")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return message(c, http.StatusBadRequest, "User already exists")
		}
		return s.internal(c, "Failed to create user", err)
	}

	s.log.Info("User registered", logger.F("user_id", u.ID))
	return c.JSON(http.StatusCreated, u)
}

// handleLogin answers the flat user record plus a token
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request")
	}

	// Find user
	row, err := scanUser(s.db.queryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		return message(c, http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return s.internal(c, "Failed to load user", err)
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(row.passwordHash), []byte(req.Password)); err != nil {
		return message(c, http.StatusUnauthorized, "Invalid email or password")
	}

	token, err := s.tokens.issue(row.ID)
	if err != nil {
		return s.internal(c, "Failed to issue token", err)
	}

	s.log.Info("User logged in", logger.F("user_id", row.ID))

	u := row.User
	u.Token = token
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"data": currentUser(c)})
}

// handleUpdateProfile applies the non-empty fields and returns the user
func (s *Server) handleUpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request")
	}

	u := currentUser(c)
	if name := strings.TrimSpace(req.Name); name != "" {
		if _, err := s.db.exec(`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`, name, now(), u.ID); err != nil {
			return s.internal(c, "Failed to update profile", err)
		}
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			return message(c, http.StatusBadRequest, "Password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return s.internal(c, "Failed to hash password", err)
		}
		if _, err := s.db.exec(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, string(hash), now(), u.ID); err != nil {
			return s.internal(c, "Failed to update profile", err)
		}
	}

	updated, err := s.userByID(u.ID)
	if err != nil {
		return s.internal(c, "Failed to load user", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": updated})
}

func (s *Server) handleListUsers(c echo.Context) error {
	rows, err := s.db.query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
	if err != nil {
		return s.internal(c, "Failed to list users", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return s.internal(c, "Failed to read user", err)
		}
		users = append(users, u.User)
	}
	if err := rows.Err(); err != nil {
		return s.internal(c, "Failed to list users", err)
	}
	return c.JSON(http.StatusOK, users)
}
