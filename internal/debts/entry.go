// Package debts holds the bill-tracking domain: debt records, the requests
// derived from them, and the view logic (sorting, filtering, formatting,
// selection and row actions) that the TUI and CLI render.
package debts

import (
	"fmt"
	"strings"
)

// Party carries the denormalized display data the backend attaches to each
// side of a debt.
type Party struct {
	Name string `json:"name"`
}

// DebtEntry is one owed amount between two users as returned by the backend.
// Archive rows additionally carry OriginalID.
type DebtEntry struct {
	ID                 int64   `json:"id"`
	OriginalID         *int64  `json:"original_id,omitempty"`
	SenderID           int64   `json:"sender_id"`
	ReceiverID         int64   `json:"receiver_id"`
	SenderData         Party   `json:"sender_data"`
	ReceiverData       Party   `json:"receiver_data"`
	Amount             float64 `json:"amount"`
	Description        string  `json:"description"`
	NextRecurrenceDate *string `json:"next_recurrence_date"`
	FrequencyInterval  string  `json:"frequency_interval"`
}

// HasNextDate reports whether the entry has a further occurrence.
func (e DebtEntry) HasNextDate() bool {
	return e.NextRecurrenceDate != nil && strings.TrimSpace(*e.NextRecurrenceDate) != ""
}

// ArchivalRequest is the archived copy of a debt sent to the backend. It has
// no id of its own and never carries the party display data.
type ArchivalRequest struct {
	OriginalID         int64   `json:"original_id"`
	SenderID           int64   `json:"sender_id"`
	ReceiverID         int64   `json:"receiver_id"`
	Amount             float64 `json:"amount"`
	Description        string  `json:"description"`
	NextRecurrenceDate *string `json:"next_recurrence_date"`
	FrequencyInterval  string  `json:"frequency_interval"`
}

// CompletionRequest asks the backend to resolve the current occurrence of the
// debt identified by OriginalID. It has the same wire shape as ArchivalRequest.
type CompletionRequest ArchivalRequest

// NewArchivalRequest projects entry into an archival copy.
func NewArchivalRequest(entry DebtEntry) ArchivalRequest {
	var next *string
	if entry.NextRecurrenceDate != nil {
		v := *entry.NextRecurrenceDate
		next = &v
	}
	return ArchivalRequest{
		OriginalID:         entry.ID,
		SenderID:           entry.SenderID,
		ReceiverID:         entry.ReceiverID,
		Amount:             entry.Amount,
		Description:        entry.Description,
		NextRecurrenceDate: next,
		FrequencyInterval:  entry.FrequencyInterval,
	}
}

// NewCompletionRequest projects entry into a completion request.
func NewCompletionRequest(entry DebtEntry) CompletionRequest {
	return CompletionRequest(NewArchivalRequest(entry))
}

// Direction selects which side of a debt the viewing user must be on.
type Direction int

const (
	DirectionAll Direction = iota
	// DirectionFrom keeps debts owed to the user (user is the receiver).
	DirectionFrom
	// DirectionTo keeps debts the user owes (user is the sender).
	DirectionTo
)

func (d Direction) String() string {
	switch d {
	case DirectionFrom:
		return "from"
	case DirectionTo:
		return "to"
	default:
		return "all"
	}
}

// Next cycles all -> from -> to -> all.
func (d Direction) Next() Direction {
	switch d {
	case DirectionAll:
		return DirectionFrom
	case DirectionFrom:
		return DirectionTo
	default:
		return DirectionAll
	}
}

// ParseDirection accepts all, from and to (case-insensitive). An empty value
// means all.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return DirectionAll, nil
	case "from":
		return DirectionFrom, nil
	case "to":
		return DirectionTo, nil
	default:
		return DirectionAll, fmt.Errorf("invalid direction %q (want all, from or to)", raw)
	}
}
