package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// timeLayout keeps stored timestamps lexically sortable on both databases
const timeLayout = "2006-01-02T15:04:05.000000Z"

// database wraps *sql.DB and rewrites ? placeholders for postgres
type database struct {
	*sql.DB
	postgres bool
}

// openDatabase opens postgres for postgres:// URLs and SQLite for anything
// else, treating it as a file path (":memory:" works too).
func openDatabase(url string) (*database, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
		return &database{DB: db, postgres: true}, nil
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &database{DB: db}, nil
}

// rebind turns ? placeholders into $1..$n for postgres
func (d *database) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *database) exec(query string, args ...any) (sql.Result, error) {
	return d.Exec(d.rebind(query), args...)
}

func (d *database) query(query string, args ...any) (*sql.Rows, error) {
	return d.Query(d.rebind(query), args...)
}

func (d *database) queryRow(query string, args ...any) *sql.Row {
	return d.QueryRow(d.rebind(query), args...)
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
