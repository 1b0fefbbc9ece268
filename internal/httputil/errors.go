// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// ErrorClass buckets a failed attempt for retry decisions and metrics.
type ErrorClass string

const (
	ClassNetwork   ErrorClass = "network"
	ClassServer    ErrorClass = "server"
	ClassRateLimit ErrorClass = "rate_limit"
	ClassMalformed ErrorClass = "malformed"
	ClassClient    ErrorClass = "client"
	ClassNotFound  ErrorClass = "not_found"
	ClassCancelled ErrorClass = "cancelled"
)

// Retryable reports whether another attempt might succeed.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassNetwork, ClassServer, ClassRateLimit, ClassMalformed:
		return true
	}
	return false
}

// ClassifyStatus maps a non-2xx HTTP status to a class.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusNotFound:
		return ClassNotFound
	case code == http.StatusTooManyRequests:
		return ClassRateLimit
	case code >= 500:
		return ClassServer
	case code >= 400:
		return ClassClient
	}
	return ClassServer
}

// RequestError is the typed failure of one logical request.
type RequestError struct {
	Op         string
	StatusCode int
	Class      ErrorClass
	Attempts   int
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	msg += fmt.Sprintf(" (%s", e.Class)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(", %d attempts", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusError builds the error for a non-2xx response.
func StatusError(op string, code int, body string) *RequestError {
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &RequestError{Op: op, StatusCode: code, Class: ClassifyStatus(code), Err: err}
}

// MalformedError builds the error for a 2xx response whose body did not decode.
func MalformedError(op string, err error) *RequestError {
	return &RequestError{Op: op, StatusCode: http.StatusOK, Class: ClassMalformed, Err: err}
}

// Classify returns the class of err. Errors that are not RequestErrors are
// treated as network failures unless they come from context cancellation.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Class
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCancelled
	}
	return ClassNetwork
}

// AttemptsOf returns the attempt count recorded on err, or 0.
func AttemptsOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Attempts
	}
	return 0
}

// KindOf maps a request failure to the run-level failure taxonomy.
func KindOf(err error) types.FailureKind {
	switch Classify(err) {
	case "":
		return ""
	case ClassNotFound:
		return types.FailureNotFound
	case ClassClient, ClassMalformed:
		return types.FailurePermanent
	}
	return types.FailureTransient
}
