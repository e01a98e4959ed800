package debts

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

const viewer int64 = 7

func sampleEntries() []DebtEntry {
	return []DebtEntry{
		{
			ID: 1, SenderID: viewer, ReceiverID: 9,
			SenderData: Party{Name: "Me"}, ReceiverData: Party{Name: "Alice"},
			Amount: 20, Description: "Rent", NextRecurrenceDate: strPtr("2024-02-01"),
		},
		{
			ID: 2, SenderID: 9, ReceiverID: viewer,
			SenderData: Party{Name: "Bob"}, ReceiverData: Party{Name: "Me"},
			Amount: 12.5, Description: "Netflix", NextRecurrenceDate: strPtr("2024-01-01"),
		},
		{
			ID: 3, SenderID: 11, ReceiverID: viewer,
			SenderData: Party{Name: "Carol"}, ReceiverData: Party{Name: "Me"},
			Amount: 300, Description: "Car repair",
		},
	}
}

func TestMatchesDirection(t *testing.T) {
	entries := sampleEntries()

	for _, e := range entries {
		assert.True(t, MatchesDirection(e, viewer, DirectionAll), "all keeps %d", e.ID)
	}

	var to, from []int64
	for _, e := range entries {
		if MatchesDirection(e, viewer, DirectionTo) {
			to = append(to, e.ID)
			assert.Equal(t, viewer, e.SenderID)
		}
		if MatchesDirection(e, viewer, DirectionFrom) {
			from = append(from, e.ID)
			assert.Equal(t, viewer, e.ReceiverID)
		}
	}
	assert.Equal(t, []int64{1}, to)
	assert.Equal(t, []int64{2, 3}, from)
}

func TestMatchesSearch(t *testing.T) {
	entries := sampleEntries()
	tests := []struct {
		query string
		want  []int64
	}{
		{query: "", want: []int64{1, 2, 3}},
		{query: "NETFLIX", want: []int64{2}},
		{query: "alice", want: []int64{1}},
		{query: "bob", want: []int64{2}},
		{query: "12.5", want: []int64{2}},
		{query: "30", want: []int64{3}},
		{query: "me", want: []int64{}},
		{query: "zzz", want: []int64{}},
	}
	for _, tt := range tests {
		got := []int64{}
		for _, e := range entries {
			if MatchesSearch(e, viewer, tt.query) {
				got = append(got, e.ID)
			}
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("MatchesSearch(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}

func TestViewIntersectsFiltersAndSorts(t *testing.T) {
	entries := sampleEntries()

	got := ids(View(entries, viewer, ViewOptions{Direction: DirectionAll}))
	assert.Equal(t, []int64{2, 1, 3}, got)

	// "Rent" passes search but fails the FROM filter.
	got = ids(View(entries, viewer, ViewOptions{Direction: DirectionFrom, Search: "rent"}))
	assert.Empty(t, got)

	// Carol passes FROM but fails search.
	got = ids(View(entries, viewer, ViewOptions{Direction: DirectionFrom, Search: "netflix"}))
	assert.Equal(t, []int64{2}, got)
}

func TestParseDirection(t *testing.T) {
	for raw, want := range map[string]Direction{"": DirectionAll, "ALL": DirectionAll, "from": DirectionFrom, " To ": DirectionTo} {
		got, err := ParseDirection(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, got, "ParseDirection(%q)", raw)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)

	assert.Equal(t, DirectionFrom, DirectionAll.Next())
	assert.Equal(t, DirectionTo, DirectionFrom.Next())
	assert.Equal(t, DirectionAll, DirectionTo.Next())
}
