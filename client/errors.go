package client

import "fmt"

// A2AClientHTTPError is returned when the transport layer fails or the server
// answers with an unexpected HTTP status
type A2AClientHTTPError struct {
	StatusCode int
	Message    string
}

func (e *A2AClientHTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Message)
}

// NewA2AClientHTTPError creates a new HTTP error
func NewA2AClientHTTPError(statusCode int, message string) *A2AClientHTTPError {
	return &A2AClientHTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// A2AClientJSONError is returned when a response body cannot be decoded
type A2AClientJSONError struct {
	Message string
}

func (e *A2AClientJSONError) Error() string {
	return fmt.Sprintf("JSON error: %s", e.Message)
}

// NewA2AClientJSONError creates a new JSON decoding error
func NewA2AClientJSONError(message string) *A2AClientJSONError {
	return &A2AClientJSONError{
		Message: message,
	}
}
