package debts

import "strings"

// ViewOptions is the UI state that shapes the rendered table.
type ViewOptions struct {
	Direction Direction
	Search    string
}

// MatchesDirection reports whether entry passes the direction filter for userID.
func MatchesDirection(entry DebtEntry, userID int64, dir Direction) bool {
	switch dir {
	case DirectionFrom:
		return entry.ReceiverID == userID
	case DirectionTo:
		return entry.SenderID == userID
	default:
		return true
	}
}

// MatchesSearch reports whether query occurs, ignoring case, in the amount,
// the description or the counterparty's name.
func MatchesSearch(entry DebtEntry, userID int64, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(formatAmountValue(entry.Amount)), q) ||
		strings.Contains(strings.ToLower(entry.Description), q) ||
		strings.Contains(strings.ToLower(CounterpartyName(userID, entry)), q)
}

// View sorts entries by due date and applies both filters.
func View(entries []DebtEntry, userID int64, opts ViewOptions) []DebtEntry {
	sorted := SortByDueDate(entries)
	out := sorted[:0]
	for _, e := range sorted {
		if !MatchesDirection(e, userID, opts.Direction) {
			continue
		}
		if !MatchesSearch(e, userID, opts.Search) {
			continue
		}
		out = append(out, e)
	}
	return out
}
