package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Op names a gateway operation.
type Op string

const (
	OpListMessages    Op = "list messages"
	OpListRawMessages Op = "list raw messages"
	OpFetchRecent     Op = "fetch recent messages"
	OpProcessMessages Op = "process messages"
)

// DefaultMessage is the human-readable failure shown when the server
// supplies none.
func (op Op) DefaultMessage() string {
	switch op {
	case OpListMessages:
		return "Failed to fetch messages"
	case OpListRawMessages:
		return "Failed to fetch raw messages"
	case OpFetchRecent:
		return "Failed to fetch recent messages"
	case OpProcessMessages:
		return "Failed to process messages"
	default:
		return "Request failed"
	}
}

// ErrorKind classifies a gateway failure.
type ErrorKind int

const (
	// KindTransport means no usable response arrived (DNS, refused, timeout, cancelled).
	KindTransport ErrorKind = iota + 1
	// KindServer means the server answered with a non-2xx status or an unreadable body.
	KindServer
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the single failure type returned by the client. Message is always
// a human-readable string suitable for display.
type Error struct {
	Op      Op
	Kind    ErrorKind
	Status  int // HTTP status for KindServer, 0 otherwise
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}

// IsServer reports whether err is a server failure.
func IsServer(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindServer
}

func transportError(op Op, err error) *Error {
	return &Error{
		Op:      op,
		Kind:    KindTransport,
		Message: op.DefaultMessage(),
		Err:     err,
	}
}

func decodeError(op Op, err error) *Error {
	return &Error{
		Op:      op,
		Kind:    KindServer,
		Message: op.DefaultMessage(),
		Err:     fmt.Errorf("decode response: %w", err),
	}
}

// apiError represents an error response from the API. FastAPI reports
// failures under "detail", either as a string or a list of validation errors.
type apiError struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// serverMessage picks the most specific message the server supplied.
func (a apiError) serverMessage() string {
	if a.Message != "" {
		return a.Message
	}
	if len(a.Detail) > 0 {
		var s string
		if err := json.Unmarshal(a.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(a.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	return a.Error
}

// maxErrorBody bounds how much of an unparseable error body ends up in logs.
const maxErrorBody = 512

// handleErrorResponse converts a non-2xx response into an *Error.
func handleErrorResponse(op Op, status int, body []byte) error {
	msg := op.DefaultMessage()

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if m := apiErr.serverMessage(); m != "" {
			msg = m
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}

	return &Error{
		Op:      op,
		Kind:    KindServer,
		Status:  status,
		Message: msg,
		Err:     fmt.Errorf("API error (%d): %s", status, text),
	}
}
