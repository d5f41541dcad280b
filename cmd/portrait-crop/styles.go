package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/menta2k/portrait-crop/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Bold(true).
			Padding(0, 2)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)
)

// styleEvent colours a pipeline log line by outcome
func styleEvent(e types.Event) string {
	if e.Job == nil {
		if strings.HasPrefix(e.Line, "⚠️") {
			return errorStyle.Render(e.Line)
		}
		return infoStyle.Render(e.Line)
	}
	switch e.Job.Outcome.Status {
	case types.StatusCropped:
		return successStyle.Render(e.Line)
	case types.StatusNoFaceFound:
		return warnStyle.Render(e.Line)
	default:
		return errorStyle.Render(e.Line)
	}
}
