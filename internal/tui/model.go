package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/topia/internal/app"
	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/session"
	"github.com/existflow/topia/internal/shop"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneContent
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeHelp
)

// View is what the content pane shows, derived from the router's path
type View int

const (
	ViewProducts View = iota
	ViewOrders
	ViewProfile
	ViewUsers
	ViewLogin
)

// navItem is one sidebar entry
type navItem struct {
	label string
	path  string
}

var navItems = []navItem{
	{"Products", "/products"},
	{"My orders", "/orders"},
	{"Profile", "/profile"},
	{"Users", "/admin/users"},
}

// viewOf maps a router path to the view that renders it
func viewOf(path string) View {
	switch {
	case guard.IsLoginPath(path):
		return ViewLogin
	case path == "/orders" || strings.HasPrefix(path, "/order/"):
		return ViewOrders
	case path == "/profile":
		return ViewProfile
	case path == "/admin/users":
		return ViewUsers
	default:
		return ViewProducts
	}
}

const (
	fieldEmail = iota
	fieldPassword
)

// Model is the main TUI model
type Model struct {
	app *app.App

	// session updates pushed by the store
	sessionChan chan session.State
	state       session.State

	// UI state
	width     int
	height    int
	pane      Pane
	mode      Mode
	navCursor int
	cursor    int
	loading   bool

	// Content
	query    shop.Query
	page     *model.ProductPage
	orders   []model.Order
	users    []model.User
	selected *model.Product

	// Input
	search     textinput.Model
	login      []textinput.Model
	loginFocus int

	message string
}

// NewModel creates a new TUI model over a wired app
func NewModel(a *app.App) Model {
	logger.Info("Initializing TUI model")

	search := textinput.New()
	search.Placeholder = "Search products..."
	search.CharLimit = 64
	search.Width = 40

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 128
	email.Width = 40

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 40

	m := Model{
		app:         a,
		sessionChan: make(chan session.State, 1), // Buffered to avoid blocking the store
		state:       a.Session.State(),
		pane:        PaneSidebar,
		mode:        ModeNormal,
		query:       shop.Query{Page: 1},
		search:      search,
		login:       []textinput.Model{email, password},
	}

	ch := m.sessionChan
	a.Session.Subscribe(func(st session.State) {
		// Keep only the latest state when the UI lags behind
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	})

	if m.view() == ViewLogin {
		m.focusLogin(fieldEmail)
	}
	logger.Debug("TUI model initialized", logger.F("status", m.state.Status.String()))
	return m
}

// view is the view for the router's current path
func (m Model) view() View {
	return viewOf(m.app.Router.CurrentPath())
}

// focusLogin moves the login form focus to field i
func (m *Model) focusLogin(i int) {
	m.loginFocus = i
	for j := range m.login {
		if j == i {
			m.login[j].Focus()
		} else {
			m.login[j].Blur()
		}
	}
}

func (m *Model) resetLogin() {
	for j := range m.login {
		m.login[j].SetValue("")
	}
	m.focusLogin(fieldEmail)
}

// listLen is the number of rows the content pane can select
func (m Model) listLen() int {
	switch m.view() {
	case ViewProducts:
		if m.page == nil {
			return 0
		}
		return len(m.page.Products)
	case ViewOrders:
		return len(m.orders)
	case ViewUsers:
		return len(m.users)
	}
	return 0
}

func (m Model) currentProduct() *model.Product {
	if m.page == nil || m.cursor >= len(m.page.Products) {
		return nil
	}
	return &m.page.Products[m.cursor]
}
