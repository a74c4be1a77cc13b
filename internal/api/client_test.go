package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	expired int
}

func (f *fakeSession) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSession) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expired++
}

type fakeNav struct {
	mu        sync.Mutex
	path      string
	redirects []string
}

func (n *fakeNav) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *fakeNav) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.redirects = append(n.redirects, path)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeSession, *fakeNav) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	sess := &fakeSession{token: "tok123"}
	nav := &fakeNav{path: "/profile"}
	c := NewClient(Config{BaseURL: srv.URL + "/api"})
	c.Bind(sess, sess)
	c.SetNavigator(nav)
	return c, sess, nav
}

func TestClient_AttachesBearerAndJSONContentType(t *testing.T) {
	var got http.Header
	var path string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	})

	var out struct{ OK bool }
	require.NoError(t, c.JSON(context.Background(), http.MethodPost, "/orders", map[string]int{"qty": 1}, &out))

	assert.True(t, out.OK)
	assert.Equal(t, "/api/orders", path)
	assert.Equal(t, "Bearer tok123", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	var auth string
	c, sess, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	})
	sess.token = ""

	require.NoError(t, c.JSON(context.Background(), http.MethodGet, "/products", nil, nil))
	assert.Empty(t, auth)
}

func TestClient_UploadKeepsMultipartContentType(t *testing.T) {
	var contentType, name, file string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		name = r.FormValue("name")
		if f, _, err := r.FormFile("image"); err == nil {
			data, _ := io.ReadAll(f)
			file = string(data)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	err := c.Upload(context.Background(), http.MethodPost, "/products",
		map[string]string{"name": "Mug"},
		[]File{{Field: "image", Filename: "mug.png", Content: strings.NewReader("PNG")}},
		nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="), contentType)
	assert.Equal(t, "Mug", name)
	assert.Equal(t, "PNG", file)
}

func TestClient_UnauthorizedExpiresSessionOnce(t *testing.T) {
	c, sess, nav := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Not authorized, token failed"}`))
	})

	err := c.JSON(context.Background(), http.MethodGet, "/users/profile", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, "Not authorized, token failed", Message(err))

	assert.Equal(t, 1, sess.expired)
	assert.Equal(t, []string{"/login"}, nav.redirects)

	// Second 401 arrives while already on the login view: no-op
	err = c.JSON(context.Background(), http.MethodGet, "/users/profile", nil, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, sess.expired)
	assert.Len(t, nav.redirects, 1)
}

func TestClient_ConcurrentUnauthorizedRedirectsOnce(t *testing.T) {
	c, sess, nav := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.JSON(context.Background(), http.MethodGet, "/orders/mine", nil, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sess.expired)
	assert.Len(t, nav.redirects, 1)
}

func TestClient_UnauthorizedOnLoginViewIsNoop(t *testing.T) {
	c, sess, nav := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password"}`))
	})
	nav.path = "/login?redirect=%2Fcart"

	err := c.JSON(context.Background(), http.MethodPost, "/auth/login", map[string]string{}, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 0, sess.expired)
	assert.Empty(t, nav.redirects)
}

func TestClient_ForbiddenDoesNotLogOut(t *testing.T) {
	c, sess, nav := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Not authorized as an admin"}`))
	})

	err := c.JSON(context.Background(), http.MethodGet, "/users", nil, nil)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 0, sess.expired)
	assert.Empty(t, nav.redirects)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
		fields  map[string]string
	}{
		{"validation with message", 400, `{"message":"User already exists"}`, ErrValidation, "User already exists", nil},
		{"validation error key", 422, `{"error":"bad input"}`, ErrValidation, "bad input", nil},
		{"validation field object", 400, `{"message":"Invalid","errors":{"email":"taken","name":{"message":"required"}}}`, ErrValidation, "Invalid",
			map[string]string{"email": "taken", "name": "required"}},
		{"validation field array", 400, `{"errors":[{"path":"password","msg":"too short"}]}`, ErrValidation, GenericMessage,
			map[string]string{"password": "too short"}},
		{"not found", 404, `not json`, ErrValidation, GenericMessage, nil},
		{"server", 500, `{"message":"db down"}`, ErrServer, "db down", nil},
		{"server without body", 503, ``, ErrServer, GenericMessage, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sess, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.JSON(context.Background(), http.MethodPost, "/auth/register", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.fields, apiErr.Fields)
			assert.Equal(t, 0, sess.expired)
		})
	}
}

func TestClient_NetworkErrorAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.JSON(context.Background(), http.MethodGet, "/products", nil, nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, GenericMessage, Message(err))

	closed := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	err = closed.JSON(context.Background(), http.MethodGet, "/products", nil, nil)
	assert.ErrorIs(t, err, ErrNetwork)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.NotNil(t, errors.Unwrap(apiErr))
}

func TestError_FieldSummary(t *testing.T) {
	e := &Error{Fields: map[string]string{"name": "required", "email": "taken"}}
	assert.Equal(t, "email: taken; name: required", e.FieldSummary())
	assert.Empty(t, (&Error{}).FieldSummary())
}
