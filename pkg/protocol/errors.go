package protocol

import (
	"errors"
	"fmt"
)

// ErrCreationFailed is matched by every failed create request.
var ErrCreationFailed = errors.New("could not create event")

// TransportError represents a network or channel failure talking to the hub.
// Polling recovers by retrying on the next cycle; the push channel by reconnecting.
type TransportError struct {
	Op  string // e.g. "GET /api/stats", "dial push"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError represents a malformed JSON response or push frame.
// The offending message is dropped; it is never fatal.
type DecodeError struct {
	Op      string
	Payload string // truncated raw payload, for debugging
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from a read endpoint.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string // server-provided message, if any
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// ValidationError is the hub rejecting a mutating request.
// It matches ErrCreationFailed via errors.Is.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (http %d)", ErrCreationFailed, e.StatusCode)
	}
	return fmt.Sprintf("%v (http %d): %s", ErrCreationFailed, e.StatusCode, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrCreationFailed
}

// BatchResult summarizes a bulk create. Individual failure causes are not retained.
type BatchResult struct {
	Attempted int
	Created   int
}

// Failed returns how many items in the batch were not created.
func (r BatchResult) Failed() int {
	return r.Attempted - r.Created
}

// Partial reports whether some, but not necessarily all, items failed.
func (r BatchResult) Partial() bool {
	return r.Failed() > 0
}
