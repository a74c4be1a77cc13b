package server

import (
	"github.com/existflow/topia/internal/logger"
	"github.com/google/uuid"
)

var seedCategories = []struct{ name, slug string }{
	{"Apparel", "apparel"},
	{"Home & Kitchen", "home-kitchen"},
	{"Accessories", "accessories"},
}

// seed inserts the starter categories and coupon and, when configured, an admin account.
// It is safe to run on every start.
func (s *Server) seed(adminEmail, adminPassword string) error {
	var n int
	if err := s.db.queryRow(`SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		for _, c := range seedCategories {
			if _, err := s.db.exec(`INSERT INTO categories (id, name, slug) VALUES (?, ?, ?)`,
				uuid.NewString(), c.name, c.slug); err != nil {
				return err
			}
		}
	}

	if err := s.db.queryRow(`SELECT COUNT(*) FROM coupons`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.exec(`INSERT INTO coupons (code, discount) VALUES (?, ?)`, "WELCOME10", 10.0); err != nil {
			return err
		}
	}

	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	email := normalizeEmail(adminEmail)
	if err := s.db.queryRow(`SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	u, err := s.createUser("Admin", email, "", adminPassword, "admin")
	if err != nil {
		return err
	}
	s.log.Info("Admin account created", logger.F("user_id", u.ID))
	return nil
}
