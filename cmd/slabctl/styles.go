package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	primaryColor = lipgloss.Color("#7D56F4")
	usedColor    = lipgloss.Color("#FF4B4B")
	freeColor    = lipgloss.Color("#04B575")
	mutedColor   = lipgloss.Color("#666666")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	usedStyle  = lipgloss.NewStyle().Foreground(usedColor)
	freeStyle  = lipgloss.NewStyle().Foreground(freeColor)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// render applies style unless colors are disabled.
func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}

// colorizeBits colors runs of '1' as used and runs of '0' as free. Other characters
// are kept as they are.
func colorizeBits(s string) string {
	if noColor {
		return s
	}
	var sb strings.Builder
	for len(s) > 0 {
		c := s[0]
		n := 1
		for n < len(s) && s[n] == c {
			n++
		}
		switch c {
		case '1':
			sb.WriteString(usedStyle.Render(s[:n]))
		case '0':
			sb.WriteString(freeStyle.Render(s[:n]))
		default:
			sb.WriteString(s[:n])
		}
		s = s[n:]
	}
	return sb.String()
}
