package remote

import "fmt"

// bodyEchoLimit caps how much of an error response body is echoed.
const bodyEchoLimit = 200

// TransportError is a non-200 HTTP response or a failed round trip.
type TransportError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote: %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("remote: %s: http %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LogicError is a 200 response whose envelope code is not the success code.
type LogicError struct {
	Endpoint string
	Code     string
	Msg      string
}

func (e *LogicError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("remote: %s: code %s", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("remote: %s: code %s: %s", e.Endpoint, e.Code, e.Msg)
}

// MalformedResponseError is a 200 response that is not a valid envelope.
type MalformedResponseError struct {
	Endpoint string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("remote: %s: malformed response: %s", e.Endpoint, e.Reason)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
