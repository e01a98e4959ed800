package debts

import (
	"strconv"
	"strings"
	"time"
)

// Tone is a rendering hint; the TUI maps tones to colours.
type Tone int

const (
	ToneNone Tone = iota
	ToneNormal
	ToneOverdue
	ToneOwedByUser
	ToneOwedToUser
)

const noDueDate = "N/A"

// FormatDueDate renders the next recurrence date for display.
func FormatDueDate(raw *string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return noDueDate
	}
	t, ok := ParseDueDate(raw)
	if !ok {
		return strings.TrimSpace(*raw)
	}
	return t.Format("Jan 2, 2006")
}

// DueTone is ToneOverdue when the due instant falls before the start of the
// current local day.
func DueTone(raw *string, now time.Time) Tone {
	due, ok := ParseDueDate(raw)
	if !ok {
		return ToneNone
	}
	local := now.In(time.Local)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	if due.Before(startOfDay) {
		return ToneOverdue
	}
	return ToneNormal
}

// Faded reports whether a row should render dimmed (no further occurrence).
func Faded(raw *string) bool {
	return raw == nil || strings.TrimSpace(*raw) == ""
}

func formatAmountValue(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// FormatAmount renders an amount in the implied currency.
func FormatAmount(amount float64) string {
	return "$ " + formatAmountValue(amount)
}

// CounterpartyName is the other party's display name from userID's point of view.
func CounterpartyName(userID int64, entry DebtEntry) string {
	if entry.ReceiverID == userID {
		return entry.SenderData.Name
	}
	return entry.ReceiverData.Name
}

// CounterpartyLabel prefixes the counterparty with the direction of payment.
func CounterpartyLabel(userID int64, entry DebtEntry) string {
	name := CounterpartyName(userID, entry)
	if entry.SenderID == userID {
		return "To " + name
	}
	return "From " + name
}

// AmountTone colours the amount by who pays.
func AmountTone(userID int64, entry DebtEntry) Tone {
	if entry.SenderID == userID {
		return ToneOwedByUser
	}
	return ToneOwedToUser
}
