package server

// migrate runs database migrations. The DDL sticks to types both SQLite and
// postgres accept; IDs are generated by the server.
func (s *Server) migrate() error {
	migrations := []string{
		migrationUsers,
		migrationCategories,
		migrationProducts,
		migrationOrders,
		migrationCoupons,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

const migrationUsers = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    points INTEGER NOT NULL DEFAULT 0,
    tier TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

const migrationCategories = `
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT UNIQUE NOT NULL
)
`

const migrationProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price DOUBLE PRECISION NOT NULL,
    count_in_stock INTEGER NOT NULL DEFAULT 0,
    category TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    num_reviews INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
)
`

const migrationOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    items TEXT NOT NULL,
    shipping_address TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    coupon_code TEXT NOT NULL DEFAULT '',
    total_price DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    is_paid INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
)
`

const migrationCoupons = `
CREATE TABLE IF NOT EXISTS coupons (
    code TEXT PRIMARY KEY,
    discount DOUBLE PRECISION NOT NULL,
    expires_at TEXT NOT NULL DEFAULT ''
)
`
