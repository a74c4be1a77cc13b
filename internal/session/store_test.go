package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, mux *http.ServeMux) (*Store, storage.Storage) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st := storage.NewMemory()
	return New(api.NewClient(api.Config{BaseURL: srv.URL}), st), st
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func stored(t *testing.T, st storage.Storage) string {
	t.Helper()
	data, err := st.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	return string(data)
}

func TestLogin_PersistsExactIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1","name":"A","email":"a@b.com","role":"user","token":"tok123"}`))
	s, st := newTestStore(t, mux)

	u, err := s.Login(context.Background(), Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)

	state := s.State()
	assert.Equal(t, Authenticated, state.Status)
	assert.Equal(t, "tok123", s.Token())
	assert.False(t, state.Loading)

	assert.JSONEq(t,
		`{"_id":"u1","name":"A","email":"a@b.com","role":"user","token":"tok123","isAdmin":false}`,
		stored(t, st))
}

func TestLogin_DerivesAdminFromRoleOrFlag(t *testing.T) {
	tests := map[string]struct {
		body string
		want bool
	}{
		"role admin":    {`{"_id":"1","role":"admin","token":"t"}`, true},
		"flag only":     {`{"_id":"1","isAdmin":true,"role":"user","token":"t"}`, true},
		"neither":       {`{"_id":"1","role":"user","token":"t"}`, false},
		"no role field": {`{"_id":"1","token":"t"}`, false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/auth/login", reply(200, tt.body))
			s, st := newTestStore(t, mux)

			_, err := s.Login(context.Background(), Credentials{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.State().IsAdmin())

			var u struct {
				IsAdmin bool `json:"isAdmin"`
			}
			require.NoError(t, json.Unmarshal([]byte(stored(t, st)), &u))
			assert.Equal(t, tt.want, u.IsAdmin)
		})
	}
}

func TestLogin_FailureLeavesStorageUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(401, `{"message":"Invalid email or password"}`))
	s, st := newTestStore(t, mux)

	_, err := s.Login(context.Background(), Credentials{Email: "a@b.com", Password: "bad"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrAuth)

	state := s.State()
	assert.Equal(t, Failed, state.Status)
	assert.Equal(t, "Invalid email or password", state.Message)
	assert.Nil(t, state.User)

	_, err = st.Get(context.Background(), DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogin_GenericMessageWithoutServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(500, `oops`))
	s, _ := newTestStore(t, mux)

	_, err := s.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Equal(t, api.GenericMessage, s.State().Message)
}

func TestLogin_MissingTokenFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1"}`))
	s, _ := newTestStore(t, mux)

	_, err := s.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, Failed, s.State().Status)
}

func TestLogin_RejectsConcurrentOperation(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Write([]byte(`{"_id":"u1","token":"t"}`))
	})
	s, _ := newTestStore(t, mux)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Login(context.Background(), Credentials{})
	}()

	<-entered
	assert.True(t, s.State().Loading)
	_, err := s.Login(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.Register(context.Background(), Registration{}, RegisterOptions{})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	assert.Equal(t, Authenticated, s.State().Status)
}

func TestLogout_IsIdempotent(t *testing.T) {
	s, st := newTestStore(t, http.NewServeMux())
	require.NoError(t, st.Set(context.Background(), DefaultKey, []byte(`{"_id":"u1","token":"t"}`)))
	s.Restore(context.Background())

	s.Logout()
	s.Logout()

	assert.Equal(t, Anonymous, s.State().Status)
	assert.Empty(t, s.Token())
	_, err := st.Get(context.Background(), DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestore_RoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u9","name":"Admin","email":"x@y.z","role":"admin","token":"abc","points":40,"tier":"gold"}`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := storage.NewMemory()
	first := New(api.NewClient(api.Config{BaseURL: srv.URL}), st)
	want, err := first.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	second := New(api.NewClient(api.Config{BaseURL: srv.URL}), st)
	state := second.Restore(context.Background())

	assert.Equal(t, Authenticated, state.Status)
	assert.Equal(t, want, state.User)
	assert.True(t, state.IsAdmin())
	assert.Equal(t, "abc", second.Token())
}

func TestRestore_FailsOpen(t *testing.T) {
	tests := map[string]string{
		"corrupt":    `{not json`,
		"no token":   `{"_id":"u1","name":"A"}`,
		"wrong type": `[1,2,3]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			s, st := newTestStore(t, http.NewServeMux())
			require.NoError(t, st.Set(context.Background(), DefaultKey, []byte(raw)))

			state := s.Restore(context.Background())
			assert.Equal(t, Anonymous, state.Status)
			assert.Nil(t, state.User)
			assert.Nil(t, state.Err)

			_, err := st.Get(context.Background(), DefaultKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}

	s, _ := newTestStore(t, http.NewServeMux())
	assert.Equal(t, Anonymous, s.Restore(context.Background()).Status)
}

func TestRegister_WithoutAutoLoginStaysAnonymous(t *testing.T) {
	var logins int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", reply(201, `{"_id":"n1","name":"New","email":"n@x.io","isAdmin":false}`))
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { logins++ })
	s, st := newTestStore(t, mux)

	u, err := s.Register(context.Background(),
		Registration{Name: "New", Email: "n@x.io", Password: "pw"},
		RegisterOptions{AutoLogin: false})
	require.NoError(t, err)

	assert.Equal(t, "n1", u.ID)
	assert.Equal(t, Anonymous, s.State().Status)
	assert.Zero(t, logins)
	_, err = st.Get(context.Background(), DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegister_AutoLoginFallsBackToLogin(t *testing.T) {
	var cred Credentials
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", reply(201, `{"_id":"n1","name":"New","email":"n@x.io"}`))
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&cred)
		w.Write([]byte(`{"_id":"n1","name":"New","email":"n@x.io","role":"user","token":"fresh"}`))
	})
	s, st := newTestStore(t, mux)

	_, err := s.Register(context.Background(),
		Registration{Name: "New", Email: "n@x.io", Password: "pw"},
		RegisterOptions{AutoLogin: true})
	require.NoError(t, err)

	assert.Equal(t, Credentials{Email: "n@x.io", Password: "pw"}, cred)
	assert.Equal(t, Authenticated, s.State().Status)
	assert.Equal(t, "fresh", s.Token())
	assert.Contains(t, stored(t, st), `"token":"fresh"`)
}

func TestRegister_AutoLoginUsesReturnedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", reply(201, `{"_id":"n1","token":"direct"}`))
	s, _ := newTestStore(t, mux)

	_, err := s.Register(context.Background(), Registration{}, RegisterOptions{AutoLogin: true})
	require.NoError(t, err)
	assert.Equal(t, "direct", s.Token())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", reply(400, `{"message":"User already exists"}`))
	s, _ := newTestStore(t, mux)

	_, err := s.Register(context.Background(), Registration{Email: "a@b.com"}, RegisterOptions{AutoLogin: true})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, Failed, s.State().Status)
	assert.Equal(t, "User already exists", s.State().Message)
}

func TestUpdateProfile_MergesAndKeepsToken(t *testing.T) {
	var auth string
	var patch ProfilePatch
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1","name":"A","email":"a@b.com","role":"user","token":"tok123"}`))
	mux.HandleFunc("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&patch)
		w.Write([]byte(`{"data":{"_id":"u1","name":"Alice","email":"a@b.com"}}`))
	})
	s, st := newTestStore(t, mux)
	_, err := s.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	u, err := s.UpdateProfile(context.Background(), ProfilePatch{Name: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok123", auth)
	assert.Equal(t, ProfilePatch{Name: "Alice"}, patch)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "tok123", u.Token)
	assert.Equal(t, "tok123", s.Token())
	assert.Contains(t, stored(t, st), `"name":"Alice"`)
	assert.Contains(t, stored(t, st), `"token":"tok123"`)
}

func TestUpdateProfile_FailureKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1","name":"A","token":"tok123"}`))
	mux.HandleFunc("/users/profile", reply(400, `{"message":"Name too long"}`))
	s, _ := newTestStore(t, mux)
	_, err := s.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	_, err = s.UpdateProfile(context.Background(), ProfilePatch{Name: "x"})
	require.Error(t, err)

	state := s.State()
	assert.Equal(t, Authenticated, state.Status)
	assert.Equal(t, "A", state.User.Name)
	assert.Equal(t, "Name too long", api.Message(state.ProfileErr))
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	s, _ := newTestStore(t, http.NewServeMux())
	_, err := s.UpdateProfile(context.Background(), ProfilePatch{Name: "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestUpdateProfile_UnauthorizedExpiresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1","token":"stale"}`))
	mux.HandleFunc("/users/profile", reply(401, `{"message":"Not authorized, token failed"}`))
	s, st := newTestStore(t, mux)
	_, err := s.Login(context.Background(), Credentials{})
	require.NoError(t, err)

	_, err = s.UpdateProfile(context.Background(), ProfilePatch{Name: "x"})
	assert.ErrorIs(t, err, api.ErrAuth)

	assert.Equal(t, Anonymous, s.State().Status)
	_, err = st.Get(context.Background(), DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubscribe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", reply(200, `{"_id":"u1","token":"t"}`))
	s, _ := newTestStore(t, mux)

	var seen []Status
	cancel := s.Subscribe(func(st State) { seen = append(seen, st.Status) })

	_, err := s.Login(context.Background(), Credentials{})
	require.NoError(t, err)
	cancel()
	s.Logout()

	assert.Equal(t, []Status{Authenticating, Authenticated}, seen)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "error", Failed.String())
}
