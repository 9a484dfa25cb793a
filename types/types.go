package types

import "time"

// TaskState represents the lifecycle state of a task.
type TaskState string

// TaskState enum values
const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// String returns the string representation of the TaskState
func (s TaskState) String() string {
	return string(s)
}

// IsValid checks if the TaskState is one of the supported values
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateUnknown:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the state is terminal. Terminal tasks accept no
// further status transitions.
func (s TaskState) IsFinal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	default:
		return false
	}
}

// MessageRole identifies the sender of a message.
type MessageRole string

// MessageRole enum values
const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// IsValid checks if the MessageRole is one of the supported values
func (r MessageRole) IsValid() bool {
	return r == MessageRoleUser || r == MessageRoleAgent
}

// PartType discriminates the members of the Part union.
type PartType string

// PartType enum values for the three part kinds
const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

// String returns the string representation of the PartType
func (t PartType) String() string {
	return string(t)
}

// IsValid checks if the PartType is one of the supported values
func (t PartType) IsValid() bool {
	switch t {
	case PartTypeText, PartTypeFile, PartTypeData:
		return true
	default:
		return false
	}
}

// FileContent carries file payloads either inline (base64 bytes) or by
// reference (uri). Exactly one of Bytes or URI should be set.
type FileContent struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Bytes    *string `json:"bytes,omitempty"`
	URI      *string `json:"uri,omitempty"`
}

// Part is one segment of a message or artifact. It is a tagged union over
// text, file and data payloads, discriminated by Type.
type Part struct {
	Type     PartType       `json:"type"`
	Text     *string        `json:"text,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is a single conversational turn between a user and an agent.
type Message struct {
	Role     MessageRole    `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskStatus captures the state of a task at a point in time, optionally
// with the message that accompanied the transition.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewTaskStatus builds a TaskStatus stamped with the current time.
func NewTaskStatus(state TaskState, message *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Artifact is a unit of output produced by a task. Index orders artifacts;
// Append and LastChunk support incremental delivery of large outputs.
type Artifact struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index"`
	Append      *bool          `json:"append,omitempty"`
	LastChunk   *bool          `json:"lastChunk,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Task is the unit of work exchanged between client and agent.
type Task struct {
	ID        string         `json:"id"`
	SessionID *string        `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatusUpdateEvent announces a status transition on a streaming channel.
// Final marks the last event of the stream.
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent announces a produced artifact on a streaming channel.
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact Artifact       `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskEvent is satisfied by the values a task stream may carry: status
// updates, artifact updates and in-band JSON-RPC errors.
type TaskEvent interface {
	taskEvent()
}

func (e *TaskStatusUpdateEvent) taskEvent() {}

func (e *TaskArtifactUpdateEvent) taskEvent() {}

func (e *JSONRPCError) taskEvent() {}

// AuthenticationInfo describes how a receiver should authenticate, e.g. when
// delivering push notifications.
type AuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials *string  `json:"credentials,omitempty"`
}

// PushNotificationConfig is the client-supplied webhook target for
// out-of-band task update delivery.
type PushNotificationConfig struct {
	URL            string              `json:"url"`
	Token          *string             `json:"token,omitempty"`
	Authentication *AuthenticationInfo `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig binds a push notification config to a task.
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// TaskIdParams addresses a task by id.
type TaskIdParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams addresses a task by id and bounds how much history the
// response should carry. A nil or non-positive HistoryLength yields an empty
// history view.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskSendParams carries a message to a task, creating the task when the id
// is new and appending a turn otherwise.
type TaskSendParams struct {
	ID                  string                  `json:"id"`
	SessionID           *string                 `json:"sessionId,omitempty"`
	Message             Message                 `json:"message"`
	AcceptedOutputModes []string                `json:"acceptedOutputModes,omitempty"`
	PushNotification    *PushNotificationConfig `json:"pushNotification,omitempty"`
	HistoryLength       *int                    `json:"historyLength,omitempty"`
	Metadata            map[string]any          `json:"metadata,omitempty"`
}

// AgentProvider identifies the organization behind an agent.
type AgentProvider struct {
	Organization string  `json:"organization"`
	URL          *string `json:"url,omitempty"`
}

// AgentCapabilities enumerates the optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentAuthentication describes the authentication the agent's endpoint expects.
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials *string  `json:"credentials,omitempty"`
}

// AgentSkill advertises one capability of an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the discovery document served at the well-known path. Clients
// read it to learn the agent's endpoint URL and capabilities before issuing
// any RPC.
type AgentCard struct {
	Name               string               `json:"name"`
	Description        *string              `json:"description,omitempty"`
	URL                string               `json:"url"`
	Provider           *AgentProvider       `json:"provider,omitempty"`
	Version            string               `json:"version"`
	DocumentationURL   *string              `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string             `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill         `json:"skills"`
}

// AgentCardWellKnownPath is where an agent publishes its card relative to
// its base URL.
const AgentCardWellKnownPath = "/.well-known/agent.json"
