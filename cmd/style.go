package cmd

import "github.com/charmbracelet/lipgloss"

// styles colour the per-book status words of a pass.
type styles struct {
	ok   lipgloss.Style
	fail lipgloss.Style
	skip lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{ok: plain, fail: plain, skip: plain}
	}
	return styles{
		ok:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skip: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}
