package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PlanRegion is one row of the plan table.
type PlanRegion struct {
	Name       string
	Type       string
	Locations  int
	Characters int
	Quests     int
}

// Plan summarizes what a run is about to generate.
type Plan struct {
	Backend    string
	Workers    int
	Images     bool
	Debug      bool
	Regions    []PlanRegion
	TextCalls  int
	ImageCalls int
}

// RenderPlan draws the plan as a bordered box.
func RenderPlan(p Plan) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("⬡ WORLDFORGE")

	nameWidth := len("Region")
	for _, region := range p.Regions {
		nameWidth = max(nameWidth, lipgloss.Width(region.Name))
	}
	rows := []string{
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%-*s  %-14s  %4s  %4s  %4s", nameWidth, "Region", "Type", "Loc", "Chr", "Qst")),
	}
	for _, region := range p.Regions {
		rows = append(rows, fmt.Sprintf("%-*s  %-14s  %4d  %4d  %4d", nameWidth, region.Name, region.Type, region.Locations, region.Characters, region.Quests))
	}

	mode := "text only"
	if p.Images {
		mode = "text + images"
	}
	summary := []string{
		fmt.Sprintf("Backend: %s · %d worker(s) · %s", p.Backend, p.Workers, mode),
		fmt.Sprintf("Estimated requests: %d text, %d image (%d total)", p.TextCalls, p.ImageCalls, p.TextCalls+p.ImageCalls),
	}
	if p.Debug {
		summary = append(summary, lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")).Render("Debug mode: counts forced to 1"))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(rows, "\n"),
		"",
		hintStyle.Render(strings.Join(summary, "\n")),
	)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(body)
	return header + "\n" + box
}
