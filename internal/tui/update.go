package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/session"
)

const requestTimeout = 15 * time.Second

// tickMsg is sent every second for the clock
type tickMsg time.Time

// sessionMsg carries a state pushed by the session store
type sessionMsg session.State

type productsMsg struct {
	page *model.ProductPage
	err  error
}

type ordersMsg struct {
	orders []model.Order
	err    error
}

type usersMsg struct {
	users []model.User
	err   error
}

type loginMsg struct {
	user *model.User
	err  error
}

// Init initializes the model with a tick command
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForSession(), m.load())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSession listens for session store changes
func (m Model) waitForSession() tea.Cmd {
	if m.sessionChan == nil {
		return nil
	}
	ch := m.sessionChan
	return func() tea.Msg {
		return sessionMsg(<-ch)
	}
}

// load fetches whatever the current view needs
func (m Model) load() tea.Cmd {
	a := m.app
	switch m.view() {
	case ViewProducts:
		q := m.query
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			page, err := a.Shop.Products.List(ctx, q)
			return productsMsg{page: page, err: err}
		}
	case ViewOrders:
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			orders, err := a.Shop.Orders.Mine(ctx)
			return ordersMsg{orders: orders, err: err}
		}
	case ViewUsers:
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			users, err := a.Shop.Users.List(ctx)
			return usersMsg{users: users, err: err}
		}
	}
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case sessionMsg:
		prev := m.state
		m.state = session.State(msg)
		if prev.IsAuthenticated() && !m.state.IsAuthenticated() && m.view() == ViewLogin {
			m.message = "Session expired, please log in again"
			m.loading = false
			m.resetLogin()
			m.pane = PaneContent
		}
		return m, m.waitForSession()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case productsMsg:
		m.loading = false
		if msg.err != nil {
			m.message = api.Message(msg.err)
			return m, nil
		}
		m.page = msg.page
		m.clampCursor()
		return m, nil

	case ordersMsg:
		m.loading = false
		if msg.err != nil {
			m.message = api.Message(msg.err)
			return m, nil
		}
		m.orders = msg.orders
		m.clampCursor()
		return m, nil

	case usersMsg:
		m.loading = false
		if msg.err != nil {
			m.message = api.Message(msg.err)
			return m, nil
		}
		m.users = msg.users
		m.clampCursor()
		return m, nil

	case loginMsg:
		m.loading = false
		m.state = m.app.Session.State()
		if msg.err != nil {
			logger.Debug("TUI login failed", logger.Err(msg.err))
			m.message = api.Message(msg.err)
			m.login[fieldPassword].SetValue("")
			m.focusLogin(fieldPassword)
			return m, nil
		}
		m.message = fmt.Sprintf("Welcome, %s", msg.user.Name)
		m.resetLogin()
		m.cursor = 0
		cmd := m.startLoad()
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch {
		case m.mode == ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case m.mode == ModeSearch:
			return m.updateSearch(msg)
		case m.view() == ViewLogin:
			return m.updateLogin(msg)
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneContent
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right):
		m.pane = PaneContent

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case key.Matches(msg, keys.Enter):
		if m.pane == PaneSidebar {
			return m.open(navItems[m.navCursor].path)
		}
		if p := m.currentProduct(); p != nil && m.view() == ViewProducts {
			m.selected = p
			return m.open("/product/" + p.ID)
		}

	case key.Matches(msg, keys.Escape):
		if m.selected != nil {
			m.selected = nil
		}

	case key.Matches(msg, keys.Search):
		m.mode = ModeSearch
		m.search.SetValue(m.query.Keyword)
		m.search.Focus()
		return m, nil

	case key.Matches(msg, keys.Next):
		if m.view() == ViewProducts && m.page != nil && m.page.Page < m.page.Pages {
			m.query.Page = m.page.Page + 1
			cmd := m.startLoad()
			return m, cmd
		}

	case key.Matches(msg, keys.Prev):
		if m.view() == ViewProducts && m.query.Page > 1 {
			m.query.Page--
			cmd := m.startLoad()
			return m, cmd
		}

	case key.Matches(msg, keys.Login):
		if !m.state.IsAuthenticated() {
			return m.open(guard.LoginURL(m.app.Router.CurrentPath()))
		}

	case key.Matches(msg, keys.Logout):
		if m.state.IsAuthenticated() {
			m.app.Logout()
			m.state = m.app.Session.State()
			m.message = "Logged out"
			if m.view() == ViewLogin {
				m.resetLogin()
				m.pane = PaneContent
			}
			cmd := m.startLoad()
			return m, cmd
		}

	case key.Matches(msg, keys.Refresh):
		cmd := m.startLoad()
		return m, cmd

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	}

	return m, nil
}

// open navigates through the guard and loads the resulting view
func (m Model) open(path string) (tea.Model, tea.Cmd) {
	d := m.app.Open(path)
	m.cursor = 0
	switch d.Outcome {
	case guard.RedirectToLogin:
		m.message = "Log in to continue"
	case guard.RedirectToHome:
		m.message = "Admin access required"
		m.selected = nil
	default:
		m.message = ""
		if !strings.HasPrefix(path, "/product/") {
			m.selected = nil
		}
	}
	if m.view() == ViewLogin {
		m.resetLogin()
		m.pane = PaneContent
		m.loading = false
		return m, nil
	}
	cmd := m.startLoad()
	return m, cmd
}

// startLoad marks the view as loading and returns its fetch command
func (m *Model) startLoad() tea.Cmd {
	cmd := m.load()
	m.loading = cmd != nil
	return cmd
}

// updateLogin handles the login form
func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		return m.open(guard.HomePath)

	case msg.Type == tea.KeyTab, msg.Type == tea.KeyDown, msg.Type == tea.KeyUp, msg.Type == tea.KeyShiftTab:
		m.focusLogin((m.loginFocus + 1) % len(m.login))
		return m, nil

	case msg.Type == tea.KeyEnter:
		if m.loginFocus == fieldEmail {
			m.focusLogin(fieldPassword)
			return m, nil
		}
		return m.submitLogin()
	}

	var cmd tea.Cmd
	m.login[m.loginFocus], cmd = m.login[m.loginFocus].Update(msg)
	return m, cmd
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	cred := session.Credentials{
		Email:    strings.TrimSpace(m.login[fieldEmail].Value()),
		Password: m.login[fieldPassword].Value(),
	}
	if cred.Email == "" || cred.Password == "" {
		m.message = "Email and password are required"
		return m, nil
	}

	m.loading = true
	m.message = "Logging in..."
	a := m.app
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		u, err := a.Login(ctx, cred)
		return loginMsg{user: u, err: err}
	}
}

// updateSearch handles the search input
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.search.Blur()
		return m, nil

	case tea.KeyEnter:
		m.mode = ModeNormal
		m.search.Blur()
		m.query.Keyword = strings.TrimSpace(m.search.Value())
		m.query.Page = 1
		path := "/products"
		if m.query.Keyword != "" {
			path = "/search/" + m.query.Keyword
		}
		m.pane = PaneContent
		return m.open(path)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) handleUp() {
	if m.pane == PaneSidebar {
		if m.navCursor > 0 {
			m.navCursor--
		}
		return
	}
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *Model) handleDown() {
	if m.pane == PaneSidebar {
		if m.navCursor < len(navItems)-1 {
			m.navCursor++
		}
		return
	}
	if m.cursor < m.listLen()-1 {
		m.cursor++
	}
}

func (m *Model) clampCursor() {
	if n := m.listLen(); m.cursor >= n {
		m.cursor = 0
		if n > 0 {
			m.cursor = n - 1
		}
	}
}
