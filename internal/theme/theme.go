// Package theme holds the lipgloss styles used by the CLI output.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tracker/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle renders command output headings.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// DimmedStyle is for secondary text such as ids and timestamps.
var DimmedStyle = lipgloss.NewStyle().Foreground(ColorGray)

// OverdueStyle marks a due date in the past.
var OverdueStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

// SuccessStyle reports a completed command.
var SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

// ErrorStyle reports a failed command.
var ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

// StatusStyle returns a color-coded style for a task status.
func StatusStyle(status model.TaskStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case model.StatusToDo:
		return base.Foreground(ColorBlue)
	case model.StatusInProgress:
		return base.Foreground(ColorYellow)
	case model.StatusBlocked:
		return base.Foreground(ColorOrange)
	case model.StatusCompleted:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle bands the 1-10 priority scale; higher is more urgent.
func PriorityStyle(priority int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch {
	case priority >= 9:
		return base.Foreground(ColorRed)
	case priority >= 7:
		return base.Foreground(ColorOrange)
	case priority >= 4:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// RoleStyle colors a user's effective role.
func RoleStyle(role model.Role) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1)

	switch role {
	case model.RoleHRAdmin:
		return base.Foreground(ColorMagenta)
	case model.RoleManager:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}
