package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.mode == ModeHelp {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderHelp(), m.renderStatusBar())
	}

	sidebar := m.renderSidebar()
	var content string
	switch m.view() {
	case ViewLogin:
		content = m.renderLogin()
	case ViewOrders:
		content = m.renderOrders()
	case ViewProfile:
		content = m.renderProfile()
	case ViewUsers:
		content = m.renderUsers()
	default:
		content = m.renderProducts()
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, m.renderStatusBar())
}

func (m Model) renderSidebar() string {
	sidebarWidth := 22
	var s string

	now := time.Now().Format("15:04:05")
	s += TitleStyle.Render("TOPIA") + "\n"
	s += HelpStyle.Render(now) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n\n"

	current := m.view()
	for i, item := range navItems {
		cursor := "  "
		style := ItemStyle
		if i == m.navCursor {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = ItemSelectedStyle
			}
		}
		label := item.label
		if viewOf(item.path) == current {
			label = "• " + label
		}
		s += style.Render(cursor+truncate(label, 14)) + "\n"
	}

	s += "\n" + lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n"
	if m.state.IsAuthenticated() {
		s += HelpStyle.Render("L logout")
	} else {
		s += HelpStyle.Render("i log in")
	}

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s)
}

func (m Model) contentWidth() int {
	return m.width - 24
}

func (m Model) header(title string) string {
	width := m.contentWidth()
	return TitleStyle.Render(title) + "\n" +
		lipgloss.NewStyle().Foreground(Border).Render(repeat("─", width-4)) + "\n\n"
}

func (m Model) row(i int, line string) string {
	if i == m.cursor && m.pane == PaneContent {
		return ItemSelectedStyle.Render("❯ "+line) + "\n"
	}
	return ItemStyle.Render("  "+line) + "\n"
}

func (m Model) renderProducts() string {
	width := m.contentWidth()
	title := "Products"
	if m.query.Keyword != "" {
		title = fmt.Sprintf("Search: %q", m.query.Keyword)
	}
	s := m.header(title)

	switch {
	case m.page == nil && m.loading:
		s += HelpStyle.Render("  Loading products...")
	case m.page == nil || len(m.page.Products) == 0:
		s += HelpStyle.Render("  No products found. Press / to search.")
	default:
		nameWidth := width - 30
		if nameWidth < 10 {
			nameWidth = 10
		}
		for i, p := range m.page.Products {
			line := fmt.Sprintf("%-*s %10s  ", nameWidth, truncate(p.Name, nameWidth), formatPrice(p.Price))
			s += m.row(i, line+StockBadge(p.CountInStock))
		}
		s += "\n" + HelpStyle.Render(fmt.Sprintf("  Page %d of %d (%d products)  n/p: page", m.page.Page, m.page.Pages, m.page.Total))
	}

	if m.selected != nil {
		s += "\n\n" + m.renderDetail()
	}
	return ContentStyle.Width(width).Height(m.height - 2).Render(s)
}

func (m Model) renderDetail() string {
	p := m.selected
	content := TitleStyle.Render(p.Name) + "  " + PriceStyle.Render(formatPrice(p.Price)) + "\n\n"
	if p.Description != "" {
		content += p.Description + "\n\n"
	}
	content += fmt.Sprintf("Rating: %.1f (%d reviews)   ", p.Rating, p.NumReviews)
	content += StockBadge(p.CountInStock) + "\n\n"
	content += HelpStyle.Render("Esc: close")
	return ModalStyle.Width(m.contentWidth() - 8).Render(content)
}

func (m Model) renderOrders() string {
	s := m.header("My orders")
	switch {
	case len(m.orders) == 0 && m.loading:
		s += HelpStyle.Render("  Loading orders...")
	case len(m.orders) == 0:
		s += HelpStyle.Render("  No orders yet.")
	default:
		for i, o := range m.orders {
			paid := "unpaid"
			if o.IsPaid {
				paid = "paid"
			}
			line := fmt.Sprintf("%-12s %s  %10s  %-10s %s",
				truncate(o.ID, 12), o.CreatedAt.Format("2006-01-02"), formatPrice(o.TotalPrice), o.Status, paid)
			s += m.row(i, line)
		}
	}
	return ContentStyle.Width(m.contentWidth()).Height(m.height - 2).Render(s)
}

func (m Model) renderProfile() string {
	s := m.header("Profile")
	u := m.state.User
	if u == nil {
		s += HelpStyle.Render("  Not logged in.")
		return ContentStyle.Width(m.contentWidth()).Height(m.height - 2).Render(s)
	}
	s += fmt.Sprintf("  Name:  %s\n  Email: %s\n", u.Name, u.Email)
	if u.Phone != "" {
		s += fmt.Sprintf("  Phone: %s\n", u.Phone)
	}
	if u.Tier != "" || u.Points > 0 {
		s += fmt.Sprintf("  Loyalty: %s, %d points\n", u.Tier, u.Points)
	}
	if u.IsAdmin {
		s += "\n  " + PriceStyle.Render("Admin access enabled") + "\n"
	}
	return ContentStyle.Width(m.contentWidth()).Height(m.height - 2).Render(s)
}

func (m Model) renderUsers() string {
	s := m.header("Users")
	if len(m.users) == 0 && m.loading {
		s += HelpStyle.Render("  Loading users...")
	}
	for i, u := range m.users {
		u.DeriveAdmin()
		role := "customer"
		if u.IsAdmin {
			role = "admin"
		}
		s += m.row(i, fmt.Sprintf("%-20s %-28s %s", truncate(u.Name, 20), truncate(u.Email, 28), role))
	}
	return ContentStyle.Width(m.contentWidth()).Height(m.height - 2).Render(s)
}

func (m Model) renderLogin() string {
	content := lipgloss.NewStyle().Bold(true).Render("Log in to TOPIA") + "\n\n"
	content += "Email\n" + m.login[fieldEmail].View() + "\n\n"
	content += "Password\n" + m.login[fieldPassword].View() + "\n\n"
	if m.loading {
		content += HelpStyle.Render("Logging in...")
	} else {
		content += HelpStyle.Render("Tab:next field  Enter:submit  Esc:cancel")
	}

	modal := ModalStyle.Render(content)
	return lipgloss.Place(m.contentWidth(), m.height-2, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "))
}

func (m Model) renderStatusBar() string {
	if m.mode == ModeSearch {
		return StatusBarStyle.Width(m.width).Render("/" + m.search.View())
	}

	help := "/:search  enter:open  r:reload  ?:help  q:quit"
	if m.message != "" {
		help = m.message
	}

	badge := SessionBadge(m.state)
	avail := m.width - lipgloss.Width(help) - lipgloss.Width(badge) - 4
	if avail > 0 {
		help += strings.Repeat(" ", avail) + badge
	} else {
		help += " " + badge
	}
	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  Enter  Open             │
│  Esc    Back             │
│                          │
│  Shop                    │
│  ────                    │
│  /      Search products  │
│  n/p    Next/prev page   │
│  r      Reload           │
│                          │
│  Session                 │
│  ───────                 │
│  i      Log in           │
│  L      Log out          │
│  ?      Toggle help      │
│  q      Quit             │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}
