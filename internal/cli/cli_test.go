package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":"u1","name":"Alice","email":"a@b.com","role":"user","token":"tok123"}`))
	})
	mux.HandleFunc("/api/orders/mine", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Not authorized, no token"}`))
			return
		}
		w.Write([]byte(`[{"_id":"o1","totalPrice":18,"status":"pending","createdAt":"2026-01-02T03:04:05Z"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TOPIA_API_URL", srv.URL+"/api")
	t.Setenv("TOPIA_STORAGE", "file")
	t.Setenv("TOPIA_STORAGE_PATH", filepath.Join(dir, "session"))
	t.Setenv("TOPIA_LOG_FILE", filepath.Join(dir, "topia.log"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSessionAcrossCommands(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "orders")
	require.Error(t, err)
	assert.Equal(t, "login required for /orders: run 'topia auth login'", err.Error())

	out, err := execute(t, "route", "check", "/orders")
	require.NoError(t, err)
	assert.Contains(t, out, "/orders -> redirect-to-login")

	out, err = execute(t, "auth", "login", "--email", "a@b.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Alice <a@b.com>")

	out, err = execute(t, "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice <a@b.com> (customer)")

	out, err = execute(t, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "o1")
	assert.Contains(t, out, "$18.00")

	_, err = execute(t, "admin", "users")
	require.Error(t, err)
	assert.Equal(t, "/admin/users requires an admin account", err.Error())

	out, err = execute(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")

	out, err = execute(t, "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestParseItem(t *testing.T) {
	it, err := parseItem("p1:3")
	require.NoError(t, err)
	assert.Equal(t, model.OrderItem{Product: "p1", Qty: 3}, it)

	it, err = parseItem("p2")
	require.NoError(t, err)
	assert.Equal(t, 1, it.Qty)

	for _, bad := range []string{"", ":2", "p1:0", "p1:x"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}

func TestFriendly(t *testing.T) {
	err := api.NewStatusError(http.StatusBadRequest, []byte(`{"message":"User already exists"}`))
	assert.Equal(t, "User already exists", friendly(err).Error())

	plain := errors.New("boom")
	assert.Same(t, plain, friendly(plain))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$9.50", formatPrice(9.5))
	assert.Equal(t, "out of stock", stockLabel(model.Product{}))
	assert.Equal(t, "4", stockLabel(model.Product{CountInStock: 4}))
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "-", yesNo(false))
}
