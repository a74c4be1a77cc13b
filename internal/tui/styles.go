package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/topia/internal/session"
)

// Color palette
var (
	// Session colors
	SessionOK      = lipgloss.Color("#95E1A3") // Green
	SessionPending = lipgloss.Color("#FFE66D") // Yellow
	SessionError   = lipgloss.Color("#FF6B6B") // Red
	SessionNone    = lipgloss.Color("#6C757D") // Gray

	// Stock colors
	InStock    = lipgloss.Color("#95E1A3")
	OutOfStock = lipgloss.Color("#FF6B6B")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Accent    = lipgloss.Color("#FFB347")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			Width(20).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	// Content pane
	ContentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// List rows
	ItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	PriceStyle = lipgloss.NewStyle().Foreground(Accent)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Login form and product detail
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// SessionBadge renders the session status for the status bar
func SessionBadge(st session.State) string {
	switch {
	case st.Loading:
		return lipgloss.NewStyle().Foreground(SessionPending).Render("● signing in")
	case st.IsAdmin():
		return lipgloss.NewStyle().Foreground(SessionOK).Render("● " + st.User.Name + " (admin)")
	case st.IsAuthenticated():
		return lipgloss.NewStyle().Foreground(SessionOK).Render("● " + st.User.Name)
	case st.Status == session.Failed:
		return lipgloss.NewStyle().Foreground(SessionError).Render("● guest")
	default:
		return lipgloss.NewStyle().Foreground(SessionNone).Render("○ guest")
	}
}

// StockBadge renders a product's availability
func StockBadge(count int) string {
	if count <= 0 {
		return lipgloss.NewStyle().Foreground(OutOfStock).Render("out of stock")
	}
	return lipgloss.NewStyle().Foreground(InStock).Render("in stock")
}
