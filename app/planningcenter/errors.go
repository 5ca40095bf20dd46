package planningcenter

import "fmt"

// UpstreamError is a non-2xx response from the Planning Center API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("planning center API error (%d): %s", e.StatusCode, e.Body)
}

// TransportError is a network-level failure before any response arrived.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
