// Package app wires one session context: storage, API client, session store,
// router and the storefront services. Each App is independent; nothing here
// is global.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/config"
	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/router"
	"github.com/existflow/topia/internal/session"
	"github.com/existflow/topia/internal/shop"
	"github.com/existflow/topia/internal/storage"
)

// App is one wired session context
type App struct {
	Config  *config.Config
	Storage storage.Storage
	Client  *api.Client
	Session *session.Store
	Router  *router.Router
	Shop    *shop.Shop

	log *logger.Logger
}

type options struct {
	storage    storage.Storage
	httpClient *http.Client
	log        *logger.Logger
}

// Option customises New
type Option func(*options)

// WithStorage uses st instead of opening the configured backend
func WithStorage(st storage.Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithHTTPClient replaces the API client's transport
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithLogger sets the logger shared by every component
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds the components from cfg and restores the persisted session
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{log: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	table := guard.DefaultTable()
	if cfg.RoutesFile != "" {
		t, err := guard.LoadTable(cfg.RoutesFile)
		if err != nil {
			return nil, err
		}
		table = t
	}

	st := o.storage
	if st == nil {
		var err error
		st, err = storage.Open(ctx, storage.Config{
			Backend:       cfg.Storage,
			Path:          cfg.StoragePath,
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	clientOpts := []api.Option{api.WithLogger(o.log.WithFields(logger.F("component", "api")))}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	client := api.NewClient(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.RequestTimeout}, clientOpts...)

	sessOpts := []session.Option{session.WithLogger(o.log.WithFields(logger.F("component", "session")))}
	if cfg.SessionKey != "" {
		sessOpts = append(sessOpts, session.WithKey(cfg.SessionKey))
	}
	store := session.New(client, st, sessOpts...)

	r := router.New(table,
		func() guard.Principal { return store.State() },
		router.WithLogger(o.log.WithFields(logger.F("component", "router"))))
	client.SetNavigator(r)

	state := store.Restore(ctx)
	o.log.Debug("Session context ready",
		logger.F("storage", cfg.Storage),
		logger.F("status", state.Status.String()))

	return &App{
		Config:  cfg,
		Storage: st,
		Client:  client,
		Session: store,
		Router:  r,
		Shop:    shop.New(client),
		log:     o.log,
	}, nil
}

// Open navigates to path through the guard
func (a *App) Open(path string) guard.Decision {
	return a.Router.Navigate(path)
}

// Login shows the login view, authenticates, and returns to where the user
// was headed.
func (a *App) Login(ctx context.Context, cred session.Credentials) (*model.User, error) {
	a.enterLogin()
	u, err := a.Session.Login(ctx, cred)
	if err != nil {
		return nil, err
	}
	a.Router.Navigate(a.Router.ReturnPath())
	return u, nil
}

// Register creates an account under opts. When the store ends up
// authenticated the router returns to where the user was headed.
func (a *App) Register(ctx context.Context, reg session.Registration, opts session.RegisterOptions) (*model.User, error) {
	a.enterLogin()
	u, err := a.Session.Register(ctx, reg, opts)
	if err != nil {
		return nil, err
	}
	if a.Session.State().IsAuthenticated() {
		a.Router.Navigate(a.Router.ReturnPath())
	}
	return u, nil
}

// Logout ends the session and re-checks the current view
func (a *App) Logout() {
	a.Session.Logout()
	a.Router.Refresh()
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

// enterLogin moves to the login view, remembering the current path
func (a *App) enterLogin() {
	cur := a.Router.CurrentPath()
	if guard.IsLoginPath(cur) {
		return
	}
	a.Router.Redirect(guard.LoginURL(cur))
}
