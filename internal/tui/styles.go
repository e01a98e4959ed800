package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lachiem1/ioukeeper/internal/debts"
)

var (
	colorCoral  = lipgloss.Color("#F47A60")
	colorYellow = lipgloss.Color("#FFD54A")
	colorSky    = lipgloss.Color("#87CEEB")
	colorBlue   = lipgloss.Color("#5FA8FF")
	colorCyan   = lipgloss.Color("#6CBFE6")
	colorRed    = lipgloss.Color("#F15B5B")
	colorGreen  = lipgloss.Color("#5CCB76")
	colorGray   = lipgloss.Color("#9CA3AF")
	colorInk    = lipgloss.Color("#1F2937")
)

var (
	mutedStyle   = lipgloss.NewStyle().Foreground(colorGray)
	labelStyle   = lipgloss.NewStyle().Foreground(colorSky).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

// toneStyle maps a debts rendering hint to a colour.
func toneStyle(tone debts.Tone) lipgloss.Style {
	switch tone {
	case debts.ToneOverdue, debts.ToneOwedByUser:
		return lipgloss.NewStyle().Foreground(colorRed)
	case debts.ToneOwedToUser:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case debts.ToneNone:
		return mutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

func renderHomeTitle() string {
	raw := []string{
		" ██╗ ██████╗ ██╗   ██╗   ██╗  ██╗███████╗███████╗██████╗ ███████╗██████╗ ",
		" ██║██╔═══██╗██║   ██║   ██║ ██╔╝██╔════╝██╔════╝██╔══██╗██╔════╝██╔══██╗",
		" ██║██║   ██║██║   ██║   █████╔╝ █████╗  █████╗  ██████╔╝█████╗  ██████╔╝",
		" ██║██║   ██║██║   ██║   ██╔═██╗ ██╔══╝  ██╔══╝  ██╔═══╝ ██╔══╝  ██╔══██╗",
		" ██║╚██████╔╝╚██████╔╝   ██║  ██╗███████╗███████╗██║     ███████╗██║  ██║",
		" ╚═╝ ╚═════╝  ╚═════╝    ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝     ╚══════╝╚═╝  ╚═╝",
	}

	// Letter regions for "IOU KEEPER", alternating coral/yellow.
	segments := [][2]int{
		{1, 3},   // I
		{4, 12},  // O
		{13, 21}, // U
		{25, 32}, // K
		{33, 40}, // E
		{41, 48}, // E
		{49, 56}, // P
		{57, 64}, // E
		{65, 72}, // R
	}
	return renderStyledBlockTitle(raw, segments)
}

func renderBillsTitle() string {
	raw := []string{
		"█▄▄ █ █   █   █▀",
		"█▄█ █ █▄▄ █▄▄ ▄█",
	}
	return renderStyledBlockTitle(raw, [][2]int{{0, 2}, {4, 4}, {6, 8}, {10, 12}, {14, 15}})
}

func renderAboutTitle() string {
	raw := []string{
		"▄▀█ █▄▄ █▀█ █ █ ▀█▀",
		"█▀█ █▄█ █▄█ █▄█  █ ",
	}
	return renderStyledBlockTitle(raw, [][2]int{{0, 2}, {4, 6}, {8, 10}, {12, 14}, {16, 18}})
}

func renderStyledBlockTitle(raw []string, segments [][2]int) string {
	stroke := lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	coral := lipgloss.NewStyle().Foreground(colorCoral).Bold(true)
	yellow := lipgloss.NewStyle().Foreground(colorYellow).Bold(true)

	rows := make([]string, 0, len(raw))
	for _, line := range raw {
		var out strings.Builder
		for idx, ch := range []rune(line) {
			if ch == ' ' {
				out.WriteRune(' ')
				continue
			}
			if isStrokeRune(ch) {
				out.WriteString(stroke.Render(string(ch)))
				continue
			}
			fill := coral
			if segmentForIndex(idx, segments)%2 == 1 {
				fill = yellow
			}
			out.WriteString(fill.Render(string(ch)))
		}
		rows = append(rows, out.String())
	}
	return strings.Join(rows, "\n")
}

func isStrokeRune(ch rune) bool {
	switch ch {
	case '╔', '╗', '╚', '╝', '║', '═', '┌', '┐', '└', '┘', '│', '─':
		return true
	default:
		return false
	}
}

func segmentForIndex(index int, segments [][2]int) int {
	for i, s := range segments {
		if index >= s[0] && index <= s[1] {
			return i
		}
	}
	return 0
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
