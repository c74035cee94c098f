package dataset

import "github.com/teledash/teledash/internal/query"

// Table is the state of one paginated table. Rows and Total keep their last
// good values when a request fails.
type Table[R any] struct {
	Rows    []R
	Total   int64
	Loading bool
	Err     string

	// latest is the id of the most recently issued request for this table.
	latest uint64
}

// RequestID returns the id of the most recently issued request.
func (t Table[R]) RequestID() uint64 {
	return t.latest
}

// State is the whole dataset state.
type State struct {
	Processed Table[query.Message]
	Raw       Table[query.RawMessage]
}

// NewState returns empty tables.
func NewState() State {
	return State{
		Processed: Table[query.Message]{Rows: []query.Message{}},
		Raw:       Table[query.RawMessage]{Rows: []query.RawMessage{}},
	}
}

// Reduce returns the state after ev. It never mutates s in place.
//
// A pending event marks its request as the latest for the target table.
// Outcomes of any other request are stale and dropped, so only the most
// recently issued request can commit.
func Reduce(s State, ev Event) State {
	if ev.Detached {
		return s
	}
	switch ev.Op.Target() {
	case SliceProcessed:
		s.Processed = reduceProcessed(s.Processed, ev)
	case SliceRaw:
		s.Raw = reduceRaw(s.Raw, ev)
	}
	return s
}

func begin[R any](t Table[R], id uint64) Table[R] {
	t.latest = id
	t.Loading = true
	t.Err = ""
	return t
}

func stale[R any](t Table[R], id uint64) bool {
	return id != t.latest
}

func fail[R any](t Table[R], msg string) Table[R] {
	t.Loading = false
	t.Err = msg
	return t
}

func reduceProcessed(t Table[query.Message], ev Event) Table[query.Message] {
	if ev.Phase == Pending {
		return begin(t, ev.RequestID)
	}
	if stale(t, ev.RequestID) {
		return t
	}
	if ev.Phase == Rejected {
		return fail(t, ev.Err)
	}
	t.Rows = nonNil(ev.Result.Messages)
	t.Total = ev.Result.Total
	t.Loading = false
	return t
}

func reduceRaw(t Table[query.RawMessage], ev Event) Table[query.RawMessage] {
	if ev.Phase == Pending {
		return begin(t, ev.RequestID)
	}
	if stale(t, ev.RequestID) {
		return t
	}
	if ev.Phase == Rejected {
		return fail(t, ev.Err)
	}

	t.Loading = false
	switch ev.Op {
	case OpListRawMessages:
		t.Rows = nonNil(ev.Result.RawMessages)
		t.Total = ev.Result.Total
	case OpFetchRecent:
		// The ingested rows replace the view; total still counts the queue.
		t.Rows = nonNil(ev.Result.RawMessages)
	case OpProcessMessages:
		// The server consumed the raw queue.
		t.Rows = []query.RawMessage{}
		t.Total = 0
	}
	return t
}

func nonNil[R any](rows []R) []R {
	if rows == nil {
		return []R{}
	}
	return rows
}
