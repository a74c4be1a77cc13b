package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/config"
	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/session"
	"github.com/existflow/topia/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T, profileStatus *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id":"u1","name":"A","email":"a@b.com","role":"user","token":"tok123"}`))
	})
	mux.HandleFunc("/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		if *profileStatus != http.StatusOK {
			w.WriteHeader(*profileStatus)
			w.Write([]byte(`{"message":"Not authorized, token failed"}`))
			return
		}
		w.Write([]byte(`{"data":{"_id":"u1","name":"A"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, srv *httptest.Server, st storage.Storage) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.APIURL = srv.URL + "/api"
	cfg.Storage = storage.BackendMemory

	a, err := New(context.Background(), cfg, WithStorage(st))
	require.NoError(t, err)
	return a
}

func TestLogin_ReturnsToRequestedView(t *testing.T) {
	status := http.StatusOK
	a := newTestApp(t, backend(t, &status), storage.NewMemory())

	d := a.Open("/orders")
	assert.Equal(t, guard.RedirectToLogin, d.Outcome)

	_, err := a.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "/orders", a.Router.CurrentPath())

	// plain user still bounces off admin views
	assert.Equal(t, guard.RedirectToHome, a.Open("/admin/users").Outcome)
	assert.Equal(t, "/", a.Router.CurrentPath())
}

func TestUnauthorizedSelfHeals(t *testing.T) {
	status := http.StatusOK
	st := storage.NewMemory()
	a := newTestApp(t, backend(t, &status), st)

	_, err := a.Login(context.Background(), session.Credentials{})
	require.NoError(t, err)
	require.Equal(t, guard.Allow, a.Open("/profile").Outcome)

	status = http.StatusUnauthorized
	_, err = a.Session.UpdateProfile(context.Background(), session.ProfilePatch{Name: "B"})
	assert.ErrorIs(t, err, api.ErrAuth)

	assert.Equal(t, session.Anonymous, a.Session.State().Status)
	_, err = st.Get(context.Background(), session.DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, guard.LoginPath, a.Router.CurrentPath())

	// a further 401 while on the login view changes nothing
	before := a.Router.History()
	err = a.Client.JSON(context.Background(), http.MethodGet, "/users/profile", nil, nil)
	assert.ErrorIs(t, err, api.ErrAuth)
	assert.Equal(t, before, a.Router.History())
}

func TestRestoreAcrossApps(t *testing.T) {
	status := http.StatusOK
	srv := backend(t, &status)
	st := storage.NewMemory()

	first := newTestApp(t, srv, st)
	_, err := first.Login(context.Background(), session.Credentials{})
	require.NoError(t, err)

	second := newTestApp(t, srv, st)
	assert.True(t, second.Session.State().IsAuthenticated())
	assert.Equal(t, "tok123", second.Session.Token())

	// independent contexts: logging one out leaves the other's memory alone
	first.Logout()
	assert.False(t, first.Session.State().IsAuthenticated())
	assert.True(t, second.Session.State().IsAuthenticated())
}

func TestLogout_LeavesProtectedView(t *testing.T) {
	status := http.StatusOK
	a := newTestApp(t, backend(t, &status), storage.NewMemory())
	_, err := a.Login(context.Background(), session.Credentials{})
	require.NoError(t, err)
	a.Open("/profile")

	a.Logout()
	assert.Equal(t, "/login?redirect=%2Fprofile", a.Router.CurrentPath())
}

func TestNew_BadRoutesFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RoutesFile = "/nonexistent/routes.yaml"
	_, err := New(context.Background(), cfg, WithStorage(storage.NewMemory()))
	assert.Error(t, err)
}
