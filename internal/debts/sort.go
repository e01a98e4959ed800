package debts

import (
	"slices"
	"strings"
	"time"
)

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 date or date-time. Values without an offset
// are read in local time. ok is false for absent or unparseable values.
func ParseDueDate(raw *string) (t time.Time, ok bool) {
	if raw == nil {
		return time.Time{}, false
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		var err error
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByDueDate returns a copy of entries ordered by next recurrence instant,
// earliest first. Entries without a (parseable) date come after all dated
// ones and keep their relative order.
func SortByDueDate(entries []DebtEntry) []DebtEntry {
	type keyed struct {
		entry  DebtEntry
		due    time.Time
		hasDue bool
	}
	keys := make([]keyed, len(entries))
	for i, e := range entries {
		due, ok := ParseDueDate(e.NextRecurrenceDate)
		keys[i] = keyed{entry: e, due: due, hasDue: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.hasDue && b.hasDue:
			return a.due.Compare(b.due)
		case a.hasDue:
			return -1
		case b.hasDue:
			return 1
		default:
			return 0
		}
	})

	out := make([]DebtEntry, len(keys))
	for i, k := range keys {
		out[i] = k.entry
	}
	return out
}
