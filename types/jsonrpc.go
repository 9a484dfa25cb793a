package types

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only protocol version this implementation speaks.
const JSONRPCVersion = "2.0"

// A2A method names
const (
	MethodTasksSend                = "tasks/send"
	MethodTasksGet                 = "tasks/get"
	MethodTasksCancel              = "tasks/cancel"
	MethodTasksSendSubscribe       = "tasks/sendSubscribe"
	MethodTasksPushNotificationSet = "tasks/pushNotification/set"
	MethodTasksPushNotificationGet = "tasks/pushNotification/get"
	MethodTasksResubscribe         = "tasks/resubscribe"
)

// JSONRPCRequest is the generic request envelope. Params stay raw until the
// method is known.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Validate checks the envelope against the JSON-RPC 2.0 shape and the set
// of A2A methods.
func (r *JSONRPCRequest) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("jsonrpc must be %q, got %q", JSONRPCVersion, r.JSONRPC)
	}
	switch r.Method {
	case MethodTasksSend, MethodTasksGet, MethodTasksCancel, MethodTasksSendSubscribe,
		MethodTasksPushNotificationSet, MethodTasksPushNotificationGet, MethodTasksResubscribe:
		return nil
	default:
		return fmt.Errorf("unknown method %q", r.Method)
	}
}

// JSONRPCResponse is the generic response envelope. Exactly one of Result
// and Error is set; ID is always serialized and is null when the request id
// could not be recovered.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// NewSuccessResponse builds a success envelope for the given request id.
func NewSuccessResponse(id any, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error envelope for the given request id.
func NewErrorResponse(id any, rpcErr *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr}
}

// GetTaskRequest retrieves the current state of a task.
type GetTaskRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  TaskQueryParams `json:"params"`
}

// SendTaskRequest delivers a message to a task and waits for the outcome.
type SendTaskRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  TaskSendParams `json:"params"`
}

// SendTaskStreamingRequest delivers a message to a task and subscribes to
// its update stream.
type SendTaskStreamingRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  TaskSendParams `json:"params"`
}

// CancelTaskRequest asks the agent to cancel a task.
type CancelTaskRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id,omitempty"`
	Method  string       `json:"method"`
	Params  TaskIdParams `json:"params"`
}

// SetTaskPushNotificationRequest registers a webhook for task updates.
type SetTaskPushNotificationRequest struct {
	JSONRPC string                     `json:"jsonrpc"`
	ID      any                        `json:"id,omitempty"`
	Method  string                     `json:"method"`
	Params  TaskPushNotificationConfig `json:"params"`
}

// GetTaskPushNotificationRequest reads back a task's registered webhook.
type GetTaskPushNotificationRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id,omitempty"`
	Method  string       `json:"method"`
	Params  TaskIdParams `json:"params"`
}

// TaskResubscriptionRequest reattaches to the update stream of an existing task.
type TaskResubscriptionRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id,omitempty"`
	Method  string       `json:"method"`
	Params  TaskIdParams `json:"params"`
}

// GetTaskResponse answers tasks/get.
type GetTaskResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// SendTaskResponse answers tasks/send.
type SendTaskResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// CancelTaskResponse answers tasks/cancel.
type CancelTaskResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// SetTaskPushNotificationResponse answers tasks/pushNotification/set.
type SetTaskPushNotificationResponse struct {
	JSONRPC string                      `json:"jsonrpc"`
	ID      any                         `json:"id"`
	Result  *TaskPushNotificationConfig `json:"result,omitempty"`
	Error   *JSONRPCError               `json:"error,omitempty"`
}

// GetTaskPushNotificationResponse answers tasks/pushNotification/get.
type GetTaskPushNotificationResponse struct {
	JSONRPC string                      `json:"jsonrpc"`
	ID      any                         `json:"id"`
	Result  *TaskPushNotificationConfig `json:"result,omitempty"`
	Error   *JSONRPCError               `json:"error,omitempty"`
}

// SendTaskStreamingResponse is one frame of a tasks/sendSubscribe or
// tasks/resubscribe stream.
type SendTaskStreamingResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  TaskEvent     `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// streamingResponseHelper defers Result decoding until the event kind is known.
type streamingResponseHelper struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// UnmarshalJSON custom unmarshaler for SendTaskStreamingResponse that decodes
// Result into the concrete event type, discriminated by the status or
// artifact field
func (r *SendTaskStreamingResponse) UnmarshalJSON(data []byte) error {
	var helper streamingResponseHelper
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}

	r.JSONRPC = helper.JSONRPC
	r.ID = helper.ID
	r.Error = helper.Error
	r.Result = nil

	if len(helper.Result) == 0 || string(helper.Result) == "null" {
		return nil
	}

	var probe struct {
		Status   json.RawMessage `json:"status"`
		Artifact json.RawMessage `json:"artifact"`
	}
	if err := json.Unmarshal(helper.Result, &probe); err != nil {
		return fmt.Errorf("failed to probe streaming result: %w", err)
	}

	switch {
	case probe.Status != nil:
		var event TaskStatusUpdateEvent
		if err := json.Unmarshal(helper.Result, &event); err != nil {
			return fmt.Errorf("failed to unmarshal status update event: %w", err)
		}
		r.Result = &event
	case probe.Artifact != nil:
		var event TaskArtifactUpdateEvent
		if err := json.Unmarshal(helper.Result, &event); err != nil {
			return fmt.Errorf("failed to unmarshal artifact update event: %w", err)
		}
		r.Result = &event
	default:
		return fmt.Errorf("streaming result is neither a status nor an artifact event")
	}

	return nil
}

// Validate checks the message against the schema: a known role and at least
// one part.
func (m *Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	return nil
}

// Validate checks the send params: a task id and a valid message.
func (p *TaskSendParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id is required")
	}
	return p.Message.Validate()
}

// Validate checks that a task id is present.
func (p *TaskIdParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id is required")
	}
	return nil
}

// Validate checks that a task id is present.
func (p *TaskQueryParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id is required")
	}
	return nil
}

// Validate checks that the config targets a task and a webhook URL.
func (p *TaskPushNotificationConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if p.PushNotificationConfig.URL == "" {
		return fmt.Errorf("push notification url is required")
	}
	return nil
}

// UnmarshalA2ARequest decodes a raw JSON-RPC payload into the typed request
// matching its method. Failures come back as *JSONRPCError: a parse error
// for invalid JSON, otherwise an invalid request error carrying the
// validation detail in Data. Unknown methods are invalid requests; the
// method set is closed.
func UnmarshalA2ARequest(data []byte) (any, *JSONRPCError) {
	if !json.Valid(data) {
		return nil, NewJSONParseError(nil)
	}

	var env JSONRPCRequest
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewInvalidRequestError(err.Error())
	}
	if err := env.Validate(); err != nil {
		return nil, NewInvalidRequestError(err.Error())
	}

	invalid := func(err error) *JSONRPCError {
		return NewInvalidRequestError(err.Error())
	}

	switch env.Method {
	case MethodTasksGet:
		var params TaskQueryParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &GetTaskRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksSend:
		var params TaskSendParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &SendTaskRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksSendSubscribe:
		var params TaskSendParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &SendTaskStreamingRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksCancel:
		var params TaskIdParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &CancelTaskRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksPushNotificationSet:
		var params TaskPushNotificationConfig
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &SetTaskPushNotificationRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksPushNotificationGet:
		var params TaskIdParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &GetTaskPushNotificationRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	case MethodTasksResubscribe:
		var params TaskIdParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, invalid(err)
		}
		if err := params.Validate(); err != nil {
			return nil, invalid(err)
		}
		return &TaskResubscriptionRequest{JSONRPC: env.JSONRPC, ID: env.ID, Method: env.Method, Params: params}, nil
	}

	return nil, NewInvalidRequestError(fmt.Sprintf("unknown method %q", env.Method))
}

// RequestID extracts the request id from a raw payload for error reporting.
// It returns nil when the payload is not an object with an id.
func RequestID(data []byte) any {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return probe.ID
}
