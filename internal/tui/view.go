package tui

import (
	"fmt"
	"strings"

	"taskboard/internal/models"
)

const listLayout = "Jan 02 15:04"

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Tasks"))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(describeFilter(m.snap.Filter) + " · sort: " + string(m.snap.Sort)))
	if m.snap.Loading {
		b.WriteString(headerStyle.Render(" · loading…"))
	}
	b.WriteString("\n\n")

	switch {
	case !m.snap.Loaded && m.snap.LoadErr != nil:
		b.WriteString(errorStyle.Render("Could not load tasks. Press r to retry."))
		b.WriteString("\n")
	case !m.snap.Loaded:
		b.WriteString("Loading…\n")
	case len(m.snap.Tasks) == 0:
		b.WriteString("No tasks. Press n to add one.\n")
	default:
		b.WriteString(m.renderTasks())
	}

	switch m.mode {
	case modeForm:
		b.WriteString("\n")
		b.WriteString(formBoxStyle.Render(m.renderForm()))
		b.WriteString("\n")
	case modeTitleFilter, modeRange:
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(successStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderTasks() string {
	var b strings.Builder
	now := m.now()
	for i, t := range m.snap.Tasks {
		cursor := "  "
		if i == m.cursor && m.mode == modeList {
			cursor = cursorStyle.Render("> ")
		}

		check := pendingStyle.Render("[ ]")
		title := t.Title
		if t.IsCompleted() {
			check = completedStyle.Render("[x]")
			title = completedStyle.Render(title)
		}

		due := ""
		if t.DueDate != nil {
			due = " due " + t.DueDate.In(m.loc).Format(listLayout)
			if t.IsOverdue(now) {
				due = overdueStyle.Render(due + " (overdue)")
			}
		}

		fmt.Fprintf(&b, "%s%s #%d %s%s%s\n",
			cursor, check, t.ID, title,
			headerStyle.Render("  created "+t.CreatedAt.In(m.loc).Format(listLayout)), due)
		if t.Description != "" && i == m.cursor {
			b.WriteString("      " + headerStyle.Render(t.Description) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString("New task\n")
	for _, f := range m.form {
		b.WriteString(f.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab move · enter next/save · esc cancel"))
	return b.String()
}

func (m Model) help() string {
	switch m.mode {
	case modeConfirmDelete:
		return "y confirm · n cancel"
	case modeForm:
		return ""
	case modeTitleFilter, modeRange:
		return "enter apply · esc cancel"
	}
	return "j/k move · / title · s status · d dates · o sort · n new · c complete · x delete · r reload · p summary · q quit"
}

func describeFilter(f models.TaskFilter) string {
	if f.IsZero() {
		return "all tasks"
	}
	var parts []string
	if f.Status != nil {
		parts = append(parts, "status="+string(*f.Status))
	}
	if f.TitleContains != nil {
		parts = append(parts, fmt.Sprintf("title~%q", *f.TitleContains))
	}
	if r := formatRange(f); r != "" {
		parts = append(parts, "created "+r)
	}
	return strings.Join(parts, " ")
}
