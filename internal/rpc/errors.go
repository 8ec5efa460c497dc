package rpc

import (
	"fmt"
	"strings"

	"waiter-station/internal/domain"
)

// TransportError: the request never produced a usable HTTP response.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError: the response body was not the JSON the contract promises.
// Body holds a truncated copy of the raw response for diagnostics.
type ParseError struct {
	Endpoint string
	Body     string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BusinessError: the server answered, but the result reports a failure.
type BusinessError struct {
	Endpoint  string
	Message   string
	Code      string
	Traceback string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unknown error", e.Endpoint)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// Classify returns the typed code when the server supplied one. Substring
// matching on the message is kept only as a fallback for backends that
// predate the code field.
func (e *BusinessError) Classify() string {
	if e.Code != "" {
		return e.Code
	}
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "authent"), strings.Contains(msg, "pin"), strings.Contains(msg, "access denied"):
		return domain.CodeAuthFailed
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no active order"):
		return domain.CodeNotFound
	default:
		return domain.CodeInternal
	}
}

// BusinessFromStatus folds a result envelope into an error, or nil on success.
func BusinessFromStatus(endpoint string, st domain.Status) error {
	if st.Success && st.Error == "" {
		return nil
	}
	return &BusinessError{
		Endpoint:  endpoint,
		Message:   st.Error,
		Code:      st.Code,
		Traceback: st.Traceback,
	}
}

const maxDiagnosticBody = 500

func truncateBody(b []byte) string {
	if len(b) > maxDiagnosticBody {
		return string(b[:maxDiagnosticBody])
	}
	return string(b)
}
