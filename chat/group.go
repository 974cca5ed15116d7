package chat

import "time"

// DayGroup is a run of messages that share a calendar day.
type DayGroup struct {
	Day      time.Time // midnight of the day in the grouping location
	Messages []Message
}

// GroupByDay splits messages at calendar-day boundaries in loc. Messages
// keep their array order; a new group starts whenever the date differs
// from the previous message's date.
func GroupByDay(messages []Message, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DayGroup
	for _, m := range messages {
		day := startOfDay(m.CreatedAt, loc)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{Day: day, Messages: []Message{m}})
	}
	return groups
}

// DayLabel names a separator: "Today", "Yesterday" or the full date.
func DayLabel(day, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now, loc)
	switch d := startOfDay(day, loc); {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return d.Format("Mon, 02 Jan 2006")
	}
}

// IsOwn reports whether self authored m.
func IsOwn(m Message, self Author) bool {
	return m.Sender.ID != "" && m.Sender.ID == self.ID
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}
