package api

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means login failed: bad credentials, transport error or a non-200 answer.
	ErrAuth = errors.New("authentication failed")
	// ErrEnumeration means the sensor catalog could not be read or was empty.
	ErrEnumeration = errors.New("sensor enumeration failed")
	// ErrFetch means one sensor's history could not be read or was malformed.
	ErrFetch = errors.New("history fetch failed")
	// ErrUnauthorized means the upstream rejected the bearer credential.
	ErrUnauthorized = errors.New("credential rejected")
)

// StatusError is a non-success answer from the telemetry API
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d, body: %s", e.Status, e.Body)
}

// FetchError describes why one sensor's history could not be used. Its text
// is what the scheduler records as that sensor's result, so Reason is kept
// free of prefixes.
type FetchError struct {
	SensorID string
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFetch, e.Err}
	}
	return []error{ErrFetch}
}
