package ui

import "github.com/charmbracelet/lipgloss"

var (
	UserPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)

	ToolStartStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	ToolSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	ToolFailureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	DiffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	DiffRemoveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	DiffHunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	StatusThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	StatusDoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	StatusDefaultStyle  = lipgloss.NewStyle().Faint(true)
	ErrorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	PermissionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("3")).
			Padding(0, 1)
)
