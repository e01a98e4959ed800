package debts

import (
	"slices"
	"sync"
)

// ActionStatus tags the result of a row action.
type ActionStatus int

const (
	ActionApplied ActionStatus = iota
	ActionNotSupported
)

// Table is the view state shared by the bills page and its table: the live and
// archived lists, the filter inputs and the current selection.
type Table struct {
	mu sync.Mutex

	live     []DebtEntry
	archived []DebtEntry

	search    string
	direction Direction
	archive   bool

	selected        *DebtEntry
	selectedArchive bool
}

// NewTable returns an empty table showing the live list.
func NewTable() *Table {
	return &Table{}
}

func (t *Table) SetEntries(entries []DebtEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = slices.Clone(entries)
	if t.selected != nil && !t.selectedArchive && indexByID(t.live, t.selected.ID) < 0 {
		t.selected = nil
	}
}

func (t *Table) SetArchived(entries []DebtEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archived = slices.Clone(entries)
	if t.selected != nil && t.selectedArchive && indexByID(t.archived, t.selected.ID) < 0 {
		t.selected = nil
	}
}

// Entries returns a copy of the live list in load order.
func (t *Table) Entries() []DebtEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.live)
}

// Archived returns a copy of the archive list in load order.
func (t *Table) Archived() []DebtEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.archived)
}

func (t *Table) Search() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.search
}

func (t *Table) SetSearch(query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = query
}

func (t *Table) Direction() Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.direction
}

func (t *Table) SetDirection(d Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.direction = d
}

// Archive reports whether the table shows the archive list.
func (t *Table) Archive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.archive
}

func (t *Table) SetArchive(archive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archive = archive
}

// Rows is the rendered view: the active list sorted and filtered for userID.
func (t *Table) Rows(userID int64) []DebtEntry {
	t.mu.Lock()
	source := t.live
	if t.archive {
		source = t.archived
	}
	source = slices.Clone(source)
	opts := ViewOptions{Direction: t.direction, Search: t.search}
	t.mu.Unlock()

	return View(source, userID, opts)
}

// SetSelected makes entry the single current selection. The list it belongs
// to is the one currently shown.
func (t *Table) SetSelected(entry DebtEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := entry
	t.selected = &e
	t.selectedArchive = t.archive
}

func (t *Table) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = nil
}

// Selected returns the current data of the selected row.
func (t *Table) Selected() (DebtEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected == nil {
		return DebtEntry{}, false
	}
	list := t.live
	if t.selectedArchive {
		list = t.archived
	}
	if i := indexByID(list, t.selected.ID); i >= 0 {
		return list[i], true
	}
	return *t.selected, true
}

// SelectedID returns the id of the selection, if any.
func (t *Table) SelectedID() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected == nil {
		return 0, false
	}
	return t.selected.ID, true
}

// UpdateByID replaces the live entry with the given id. It reports whether an
// entry was replaced.
func (t *Table) UpdateByID(id int64, entry DebtEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := indexByID(t.live, id)
	if i < 0 {
		return false
	}
	t.live[i] = entry
	if t.selected != nil && !t.selectedArchive && t.selected.ID == id {
		e := entry
		t.selected = &e
	}
	return true
}

// DeleteByID removes the live entry with the given id and clears the selection
// when it pointed at that entry.
func (t *Table) DeleteByID(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected != nil && !t.selectedArchive && t.selected.ID == id {
		t.selected = nil
	}
	i := indexByID(t.live, id)
	if i < 0 {
		return false
	}
	t.live = slices.Delete(t.live, i, i+1)
	return true
}

// DeleteArchived is the archive view's delete affordance. Deleting archived
// debts is not implemented; it changes nothing.
func (t *Table) DeleteArchived(DebtEntry) ActionStatus {
	return ActionNotSupported
}

// Reset drops the lists and the selection. Filter inputs are kept.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = nil
	t.archived = nil
	t.selected = nil
	t.selectedArchive = false
}

func indexByID(entries []DebtEntry, id int64) int {
	return slices.IndexFunc(entries, func(e DebtEntry) bool { return e.ID == id })
}
