package types

// JSON-RPC 2.0 standard error codes
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

// A2A protocol error codes
const (
	ErrorCodeTaskNotFound                 = -32001
	ErrorCodeTaskNotCancelable            = -32002
	ErrorCodePushNotificationNotSupported = -32003
	ErrorCodeUnsupportedOperation         = -32004
	ErrorCodeContentTypeNotSupported      = -32005
)

// JSONRPCError is a JSON-RPC 2.0 error object. It doubles as a stream event
// so task streams can carry errors in band.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface
func (e *JSONRPCError) Error() string {
	return e.Message
}

// NewJSONParseError indicates the server received invalid JSON.
func NewJSONParseError(data any) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeParseError, Message: "Invalid JSON payload", Data: data}
}

// NewInvalidRequestError indicates the payload was valid JSON but not a
// valid request object.
func NewInvalidRequestError(data any) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInvalidRequest, Message: "Request payload validation error", Data: data}
}

// NewMethodNotFoundError indicates the method does not exist.
func NewMethodNotFoundError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeMethodNotFound, Message: "Method not found"}
}

// NewInvalidParamsError indicates the params do not match the method.
func NewInvalidParamsError(data any) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInvalidParams, Message: "Invalid parameters", Data: data}
}

// NewInternalError indicates an unexpected server-side failure.
func NewInternalError(data any) *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeInternalError, Message: "Internal error", Data: data}
}

// NewTaskNotFoundError indicates the referenced task id is unknown.
func NewTaskNotFoundError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeTaskNotFound, Message: "Task not found"}
}

// NewTaskNotCancelableError indicates the task exists but refuses cancellation.
func NewTaskNotCancelableError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeTaskNotCancelable, Message: "Task cannot be canceled"}
}

// NewPushNotificationNotSupportedError indicates the agent does not deliver
// push notifications.
func NewPushNotificationNotSupportedError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodePushNotificationNotSupported, Message: "Push Notification is not supported"}
}

// NewUnsupportedOperationError indicates the operation is recognized but not
// implemented by this agent.
func NewUnsupportedOperationError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeUnsupportedOperation, Message: "This operation is not supported"}
}

// NewContentTypeNotSupportedError indicates none of the requested output
// modes overlap with the agent's supported modes.
func NewContentTypeNotSupportedError() *JSONRPCError {
	return &JSONRPCError{Code: ErrorCodeContentTypeNotSupported, Message: "Incompatible content types"}
}
