// Package dataset holds the state of the two message tables and the pure
// reducer that advances it from request phase events.
package dataset

import "github.com/teledash/teledash/internal/query"

// Phase is the lifecycle stage of one request.
type Phase int

const (
	Pending Phase = iota
	Fulfilled
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Operation names the request an event belongs to.
type Operation string

const (
	OpListMessages    Operation = "GET_MESSAGE"
	OpListRawMessages Operation = "GET_RAW_MESSAGE"
	OpFetchRecent     Operation = "FETCH_RECENT"
	OpProcessMessages Operation = "PROCESS_MESSAGE"
)

// Slice names the table an operation writes to.
type Slice int

const (
	SliceNone Slice = iota
	SliceProcessed
	SliceRaw
)

func (s Slice) String() string {
	switch s {
	case SliceProcessed:
		return "processed"
	case SliceRaw:
		return "raw"
	default:
		return "none"
	}
}

// Target returns the slice op writes to.
func (op Operation) Target() Slice {
	switch op {
	case OpListMessages:
		return SliceProcessed
	case OpListRawMessages, OpFetchRecent, OpProcessMessages:
		return SliceRaw
	default:
		return SliceNone
	}
}

// Result is the payload of a fulfilled request. Only the fields relevant to
// the operation are set.
type Result struct {
	Messages    []query.Message
	RawMessages []query.RawMessage
	Records     []query.Record
	Total       int64
	Count       int // rows ingested by FetchRecent
	Ack         *query.Ack
}

// Event is one phase transition of one request.
type Event struct {
	Op        Operation
	Phase     Phase
	RequestID uint64
	// Detached requests report to their caller only and never touch state.
	Detached bool
	Result   Result
	Err      string
}
