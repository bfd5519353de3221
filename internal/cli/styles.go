package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"budgetbeacon/internal/core"
)

var (
	SuccessColor = lipgloss.Color("#2E9E6B")
	WarningColor = lipgloss.Color("#E0A526")
	ErrorColor   = lipgloss.Color("#D64545")
	InfoColor    = lipgloss.Color("#4A7FC1")
	SubtleColor  = lipgloss.Color("#666666")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(InfoColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

	IncomeStyle  = lipgloss.NewStyle().Foreground(SuccessColor)
	ExpenseStyle = lipgloss.NewStyle().Foreground(ErrorColor)
)

// ToneStyle returns the style for a status tone.
func ToneStyle(tone core.Tone) lipgloss.Style {
	switch tone {
	case core.ToneSuccess:
		return SuccessStyle
	case core.ToneWarning:
		return WarningStyle
	case core.ToneError:
		return ErrorStyle
	default:
		return InfoStyle
	}
}

// RenderStatus styles message by the tone its wording implies.
func RenderStatus(message string) string {
	return ToneStyle(core.InferTone(message)).Render(message)
}

// PrintStatus writes a styled status line. Empty messages print nothing.
func PrintStatus(w io.Writer, message string) {
	if message == "" {
		return
	}
	fmt.Fprintln(w, RenderStatus(message))
}

// RenderAmount formats an entry amount, colored by type.
func RenderAmount(t core.EntryType, amount core.Money, currency string) string {
	text := amount.Format(currency)
	if t == core.Income {
		return IncomeStyle.Render("+" + text)
	}
	return ExpenseStyle.Render("-" + text)
}
