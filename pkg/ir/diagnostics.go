package ir

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEntry       = errors.New("no IR entry found")
	ErrMissingReturn      = errors.New("no Return node found")
	ErrMissingReturnValue = errors.New("no return value found")
	ErrIncompleteSubgraph = errors.New("incomplete subgraph")
	ErrBracketMismatch    = errors.New("bracket mismatch")
	ErrIndexConflict      = errors.New("function span conflict")
	ErrUnknownFunction    = errors.New("unknown function")
)

// DiagnosticKind classifies a structural problem found while scanning.
type DiagnosticKind string

const (
	KindMissingEntry       DiagnosticKind = "missing_entry"
	KindMissingReturn      DiagnosticKind = "missing_return"
	KindMissingReturnValue DiagnosticKind = "missing_return_value"
	KindIncompleteSubgraph DiagnosticKind = "incomplete_subgraph"
	KindBracketMismatch    DiagnosticKind = "bracket_mismatch"
	KindIndexConflict      DiagnosticKind = "index_conflict"
)

var kindErrors = map[DiagnosticKind]error{
	KindMissingEntry:       ErrMissingEntry,
	KindMissingReturn:      ErrMissingReturn,
	KindMissingReturnValue: ErrMissingReturnValue,
	KindIncompleteSubgraph: ErrIncompleteSubgraph,
	KindBracketMismatch:    ErrBracketMismatch,
	KindIndexConflict:      ErrIndexConflict,
}

// Diagnostic is a recoverable problem reported as data.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" msgpack:"kind"`
	Message string         `json:"message" msgpack:"message"`
	Offset  int            `json:"offset" msgpack:"offset"`
}

// Err returns the diagnostic as an error wrapping its sentinel.
func (d Diagnostic) Err() error {
	sentinel, ok := kindErrors[d.Kind]
	if !ok {
		return errors.New(d.Message)
	}
	if d.Message == "" || d.Message == sentinel.Error() {
		return fmt.Errorf("offset %d: %w", d.Offset, sentinel)
	}
	return fmt.Errorf("offset %d: %w: %s", d.Offset, sentinel, d.Message)
}

func (d Diagnostic) String() string {
	return d.Err().Error()
}

func newDiagnostic(kind DiagnosticKind, offset int, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
