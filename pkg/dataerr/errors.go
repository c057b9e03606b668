// Package dataerr defines the error taxonomy shared by every stage of a
// data request: partitioning, transport, dispatch and reassembly.
//
// Callers match on kinds with errors.Is against the package sentinels:
//
//	res, err := session.Datagrid(ctx, q, eikon.Options{})
//	if errors.Is(err, dataerr.ErrNoData) {
//		// the service had nothing for these instruments
//	}
package dataerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	// KindNoData means the dispatch produced zero usable chunks.
	KindNoData Kind = "no_data"

	// KindNoHeaders means no chunk yielded a header set.
	KindNoHeaders Kind = "no_headers"

	// KindNoDataFrame means table construction or stacking failed.
	KindNoDataFrame Kind = "no_data_frame"

	// KindConnection is a non-retriable transport failure.
	KindConnection Kind = "connection"

	// KindThread is a worker pool failure.
	KindThread Kind = "thread"

	// KindAuth is a credential failure.
	KindAuth Kind = "auth"

	// KindDate is an unparseable or missing date parameter.
	KindDate Kind = "date"

	// KindInvalid is any other input validation failure.
	KindInvalid Kind = "invalid"

	// KindNotFound means no live proxy endpoint was discovered.
	KindNotFound Kind = "not_found"

	// KindQuota means the daily request budget is exhausted.
	KindQuota Kind = "quota"
)

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrNoData      = &Error{Kind: KindNoData}
	ErrNoHeaders   = &Error{Kind: KindNoHeaders}
	ErrNoDataFrame = &Error{Kind: KindNoDataFrame}
	ErrConnection  = &Error{Kind: KindConnection}
	ErrThread      = &Error{Kind: KindThread}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrDate        = &Error{Kind: KindDate}
	ErrInvalid     = &Error{Kind: KindInvalid}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrQuota       = &Error{Kind: KindQuota}
)

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// New creates an Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first classified error in err's chain.
// Errors that carry no classification report KindInvalid; nil reports "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInvalid
}
