package model

import "fmt"

// TransportError carries whatever diagnostic detail the transport layer
// produced for a failed connection attempt. Browser-side CORS and proxy
// failures historically arrive with nothing useful in them, so the health
// monitor classifies these separately (see health.IsEmptyError).
type TransportError struct {
	// Op names the failed operation: "dial", "read", "write".
	Op string

	// URL is the endpoint the operation targeted.
	URL string

	// Fields holds transport-provided metadata. May contain only
	// boilerplate event keys, which is exactly the "empty error" symptom.
	Fields map[string]any

	// Err is the underlying cause, nil when the transport reported
	// a bare failure event with no error value.
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s %s: no detail", e.Op, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }
