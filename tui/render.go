package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/chatview"
	"github.com/karthikraju391/codecrush/models"
)

const (
	selectPrompt    = "Select a Connection"
	noConnections   = "No Connections Found!"
	emptyTimeline   = "No messages yet. Start the conversation!"
	loadingTimeline = "Loading messages…"
	ownLabel        = "You"
	pendingSuffix   = "sending…"
	failedSuffix    = "failed – ctrl+r to retry"
	timeLayout      = "15:04"
)

var (
	accentColor = lipgloss.Color("99")
	mutedColor  = lipgloss.Color("242")
	errorColor  = lipgloss.Color("203")
	ownBg       = lipgloss.Color("57")
	remoteBg    = lipgloss.Color("236")

	separatorStyle = lipgloss.NewStyle().Foreground(mutedColor).Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	failedStyle    = lipgloss.NewStyle().Foreground(errorColor)
	ownBubble      = lipgloss.NewStyle().Background(ownBg).Foreground(lipgloss.Color("255")).Padding(0, 1)
	remoteBubble   = lipgloss.NewStyle().Background(remoteBg).Foreground(lipgloss.Color("252")).Padding(0, 1)
	placeholder    = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	activeStyle    = lipgloss.NewStyle().Foreground(accentColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
)

// renderTimeline draws the conversation with day separators, newest last.
func renderTimeline(v chatview.View, self chat.Author, width int, now time.Time, loc *time.Location) string {
	if width <= 0 {
		width = 80
	}
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)
	switch {
	case v.CounterpartyID == "":
		return center.Render(placeholder.Render(selectPrompt))
	case len(v.Messages) == 0 && v.Loading:
		return center.Render(placeholder.Render(loadingTimeline))
	case len(v.Messages) == 0:
		return center.Render(placeholder.Render(emptyTimeline))
	}

	var b strings.Builder
	for i, group := range chat.GroupByDay(v.Messages, loc) {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(center.Render(separatorStyle.Render("── " + chat.DayLabel(group.Day, now, loc) + " ──")))
		b.WriteString("\n")
		for _, m := range group.Messages {
			b.WriteString(renderMessage(m, self, width, loc))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(m chat.Message, self chat.Author, width int, loc *time.Location) string {
	own := chat.IsOwn(m, self)
	name := m.Sender.FullName()
	bubble := remoteBubble
	align := lipgloss.Left
	if own {
		name = ownLabel
		bubble = ownBubble
		align = lipgloss.Right
	}

	meta := name + " · " + m.CreatedAt.In(loc).Format(timeLayout)
	switch m.Status {
	case chat.StatusPending:
		meta += " · " + pendingSuffix
	case chat.StatusFailed:
		meta = metaStyle.Render(meta+" · ") + failedStyle.Render(failedSuffix)
	}
	if m.Status != chat.StatusFailed {
		meta = metaStyle.Render(meta)
	}

	maxBubble := width * 3 / 4
	if maxBubble < 10 {
		maxBubble = width
	}
	// Long text wraps inside a fixed width bubble.
	if lipgloss.Width(m.Text)+2 > maxBubble {
		bubble = bubble.Width(maxBubble)
	}
	body := bubble.Render(m.Text)

	block := lipgloss.JoinVertical(align, meta, body)
	return lipgloss.NewStyle().Width(width).Align(align).Render(block)
}

// renderSidebar lists connections; cursor marks the highlighted row and
// active the open conversation.
func renderSidebar(contacts []models.Contact, cursor int, active string, width int) string {
	style := lipgloss.NewStyle().Width(width)
	if len(contacts) == 0 {
		return style.Render(placeholder.Render(noConnections))
	}
	lines := make([]string, 0, len(contacts)+1)
	lines = append(lines, separatorStyle.Render("Connections"))
	for i, c := range contacts {
		name := c.FullName()
		if name == "" {
			name = "User"
		}
		prefix := "  "
		if i == cursor {
			prefix = "› "
		}
		line := prefix + name
		switch {
		case i == cursor:
			line = selectedStyle.Render(line)
		case c.ID == active:
			line = activeStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// lastFailed returns the temp id of the newest failed message.
func lastFailed(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Failed() {
			return msgs[i].TempID, true
		}
	}
	return "", false
}
