package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorBlack  = "#000000"
	colorGreen  = "#10B981"
	colorRed    = "#EF4444"
	colorYellow = "#F59E0B"
	colorGray   = "#9CA3AF"
)

var (
	statusBase = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlack)).Bold(true)

	statusConnected    = statusBase.Background(lipgloss.Color(colorGreen))
	statusDisconnected = statusBase.Background(lipgloss.Color(colorRed))
	statusIdle         = statusBase.Background(lipgloss.Color(colorYellow))

	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
)
