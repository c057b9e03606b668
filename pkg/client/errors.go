package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/eikon-data-client/pkg/dataerr"
)

// ErrorClass represents a classification of transport failures.
type ErrorClass string

const (
	// ErrorClassNetwork means the request could not be sent or the response
	// not received. It is the only transient class.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCanceled means the caller's context ended the call.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassStatus represents a non-2xx response.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassDecode represents a response body that is not JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassRequest means the request could not be built.
	ErrorClassRequest ErrorClass = "request"
)

// TransportError is a classified failure of one proxy exchange.
type TransportError struct {
	Class      ErrorClass
	StatusCode int
	Endpoint   Endpoint
	Path       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s error (%s%s", e.Class, e.Endpoint, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += "): " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Kind maps the failure onto the shared taxonomy. A rejected credential is
// an auth failure; everything else is a connection failure.
func (e *TransportError) Kind() dataerr.Kind {
	if e.Class == ErrorClassStatus &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden) {
		return dataerr.KindAuth
	}
	return dataerr.KindConnection
}

// Is lets errors.Is match the dataerr sentinels by kind.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*dataerr.Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind()
}

// IsTransient reports whether err is a transport failure worth retrying.
// Only network failures qualify; a response that arrived, whatever its
// content, and a cancelled context never do.
func IsTransient(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Class == ErrorClassNetwork
}
