package debts

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestArchivalRequestOmitsIDAndPartyData(t *testing.T) {
	entry := DebtEntry{
		ID: 3, SenderID: 7, ReceiverID: 9,
		SenderData: Party{Name: "Me"}, ReceiverData: Party{Name: "Alice"},
		Amount: 20, Description: "Gym", NextRecurrenceDate: strPtr("2024-01-01"),
	}

	raw, err := json.Marshal(NewArchivalRequest(entry))
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	body := string(raw)
	for _, forbidden := range []string{`"id"`, "sender_data", "receiver_data"} {
		if strings.Contains(body, forbidden) {
			t.Fatalf("archival request %s contains %s", body, forbidden)
		}
	}
	if !strings.Contains(body, `"original_id":3`) {
		t.Fatalf("archival request %s missing original_id", body)
	}
}

func TestArchivalRequestCopiesDate(t *testing.T) {
	entry := DebtEntry{ID: 1, NextRecurrenceDate: strPtr("2024-01-01")}
	req := NewArchivalRequest(entry)
	*entry.NextRecurrenceDate = "2030-01-01"
	if *req.NextRecurrenceDate != "2024-01-01" {
		t.Fatalf("request date = %q, want %q", *req.NextRecurrenceDate, "2024-01-01")
	}
}
