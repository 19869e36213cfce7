// Package theme provides the Lip Gloss color palette and reusable styles
// for the course-web TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Section colors, one per routed screen.
var (
	ColorStudents   = lipgloss.Color("#3b82f6")
	ColorTeachers   = lipgloss.Color("#a855f7")
	ColorCourses    = lipgloss.Color("#06b6d4")
	ColorEnrollment = lipgloss.Color("#22c55e")
	ColorData       = lipgloss.Color("#d97706")
	ColorStatistics = lipgloss.Color("#f59e0b")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// Progress bar gradient.
var (
	ColorProgressStart = lipgloss.Color("#2563eb")
	ColorProgressEnd   = lipgloss.Color("#16a34a")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#7c3aed")
)

// SectionColor returns the accent color for a route path.
func SectionColor(path string) lipgloss.Color {
	switch path {
	case "/students":
		return ColorStudents
	case "/teachers":
		return ColorTeachers
	case "/courses":
		return ColorCourses
	case "/enrollment":
		return ColorEnrollment
	case "/data":
		return ColorData
	case "/statistics":
		return ColorStatistics
	default:
		return ColorDefault
	}
}

// StreamStateColor returns the color for a stream connection state name.
func StreamStateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorHealthy
	case "connecting":
		return ColorWarning
	case "closed":
		return ColorDimmed
	default:
		return ColorDanger
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorHealthy)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Width(14)
)

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// Help renders a dimmed "key:action" help line.
func Help(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+":"+pairs[i+1])
	}
	return StyleDimmed.Render("  " + strings.Join(parts, "  "))
}
