package cleaning

import "github.com/okian/datalens/internal/domain/table"

// ActionKind names a repair.
type ActionKind string

// Action kinds, in the order the cleaner applies them.
const (
	Drop   ActionKind = "drop"
	Dedupe ActionKind = "dedupe"
	Impute ActionKind = "impute"
	Clip   ActionKind = "clip"
)

// Action is one applied repair with enough detail to reverse it.
//
// Drop records the column position at the time of removal together with its
// cells and kind. Dedupe records the removed row's index in the input table,
// its first occurrence and its cells. Impute and Clip record the cell
// coordinates in the deduplicated table and both values.
type Action struct {
	Kind        ActionKind   `json:"kind"`
	Column      string       `json:"column,omitempty"`
	ColumnKind  table.Kind   `json:"column_kind,omitempty"`
	Position    int          `json:"position"`
	Row         int          `json:"row"`
	DuplicateOf *int         `json:"duplicate_of,omitempty"`
	Before      table.Cell   `json:"before"`
	After       table.Cell   `json:"after"`
	Cells       []table.Cell `json:"cells,omitempty"`
}

// Log is the ordered audit trail of one cleaning run.
type Log struct {
	Actions       []Action `json:"actions"`
	RowsBefore    int      `json:"rows_before"`
	RowsAfter     int      `json:"rows_after"`
	ColumnsBefore int      `json:"columns_before"`
	ColumnsAfter  int      `json:"columns_after"`
}

// Len returns the number of actions.
func (l Log) Len() int { return len(l.Actions) }

// ByKind returns the actions of one kind in log order.
func (l Log) ByKind(kind ActionKind) []Action {
	var out []Action
	for _, a := range l.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// CountByKind tallies actions per kind.
func (l Log) CountByKind() map[ActionKind]int {
	out := map[ActionKind]int{Drop: 0, Dedupe: 0, Impute: 0, Clip: 0}
	for _, a := range l.Actions {
		out[a.Kind]++
	}
	return out
}
