package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyResolved is returned when a review item is no longer pending.
var ErrAlreadyResolved = errors.New("review item already resolved")

// ErrQueueEmpty is returned by Claim when nothing is ready.
var ErrQueueEmpty = errors.New("queue empty")

// Kind is a failure class from the error taxonomy.
type Kind string

// Failure classes.
const (
	KindTransport   Kind = "transport"
	KindTimeout     Kind = "timeout"
	KindHTTP4xx     Kind = "http_4xx"
	KindHTTP5xx     Kind = "http_5xx"
	KindBlocked     Kind = "blocked"
	KindSSL         Kind = "ssl_error"
	KindTooLarge    Kind = "too_large"
	KindOCRFailed   Kind = "ocr_failed"
	KindParseFailed Kind = "parse_failed"
	KindValidation  Kind = "validation"
	KindDBTransient Kind = "db_transient"
	KindDBFatal     Kind = "db_fatal"
	KindShutdown    Kind = "shutdown"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, retryable bool, err error) *Error {
	return &Error{Kind: kind, Op: op, Retryable: retryable, Err: err}
}

// Transport wraps connection resets, DNS failures and similar network faults.
func Transport(op string, err error) error { return newError(KindTransport, op, true, err) }

// Timeout wraps a deadline hit while talking to a remote service.
func Timeout(op string, err error) error { return newError(KindTimeout, op, true, err) }

// SSL wraps a TLS handshake or certificate failure.
func SSL(op string, err error) error { return newError(KindSSL, op, true, err) }

// TooLarge reports a body over the configured byte limit.
func TooLarge(op string, limit int64) error {
	return newError(KindTooLarge, op, false, fmt.Errorf("body exceeds %d bytes", limit))
}

// Blocked reports a source refusing access, such as an expired session.
func Blocked(op string, err error) error { return newError(KindBlocked, op, true, err) }

// OCRFailed reports that every OCR engine failed.
func OCRFailed(op string, err error) error { return newError(KindOCRFailed, op, true, err) }

// ParseFailed reports content a parser could not handle.
func ParseFailed(op string, err error) error { return newError(KindParseFailed, op, false, err) }

// Validation reports a rejected candidate name. It never reaches the queue.
func Validation(op string, err error) error { return newError(KindValidation, op, false, err) }

// DBTransient wraps serialization failures and deadlocks.
func DBTransient(op string, err error) error { return newError(KindDBTransient, op, true, err) }

// DBFatal wraps unexpected constraint violations.
func DBFatal(op string, err error) error { return newError(KindDBFatal, op, false, err) }

// Shutdown marks a cooperative stop.
func Shutdown(op string) error { return newError(KindShutdown, op, false, context.Canceled) }

// HTTPStatus classifies a non-success HTTP status code.
func HTTPStatus(op string, code int) error {
	cause := errors.New(http.StatusText(code))
	var e *Error
	switch {
	case code == http.StatusForbidden || code == http.StatusTooManyRequests:
		e = newError(KindBlocked, op, true, cause)
	case code == http.StatusRequestTimeout:
		e = newError(KindHTTP4xx, op, true, cause)
	case code >= 400 && code < 500:
		e = newError(KindHTTP4xx, op, false, cause)
	case code >= 500:
		e = newError(KindHTTP5xx, op, true, cause)
	default:
		e = newError(KindTransport, op, true, cause)
	}
	e.StatusCode = code
	return e
}

// KindOf returns the taxonomy class of err, or "" when it is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err may succeed on a later attempt.
// Unclassified errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return !errors.Is(err, context.Canceled)
}
