package xstream

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is wrapped by option validation failures.
var ErrInvalidOptions = errors.New("invalid options")

// TransportError is a failed store call. It always terminates the sequence
// it happened on; nothing in this package retries.
type TransportError struct {
	Op     string // append, read, metadata, subscribe, receive, time
	Stream string // stream or pattern list, if any
	Err    error
}

func (e *TransportError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Stream, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(op, stream string, err error) error {
	return &TransportError{Op: op, Stream: stream, Err: err}
}
