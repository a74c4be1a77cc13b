package tui

import (
	"fmt"
	"strings"
)

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// repeat creates a string by repeating s n times
func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
