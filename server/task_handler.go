package server

import (
	"context"

	"github.com/agentmesh/a2a-go/types"
)

// TaskHandler defines how to handle task processing for unary sends.
// This interface should be implemented by domain-specific task handlers.
type TaskHandler interface {
	// HandleTask runs the task to completion and returns the final status
	// and any artifacts produced. The message is the turn that triggered
	// this run; the task carries the accumulated history.
	HandleTask(ctx context.Context, task *types.Task, message types.Message) (types.TaskStatus, []types.Artifact, error)
}

// EventPublisher delivers stream events for a running task. Implementations
// mirror published events into the task store before fanning them out.
type EventPublisher func(event types.TaskEvent)

// StreamableTaskHandler defines how to handle task processing for streaming
// sends. The handler publishes status and artifact events as work
// progresses and must end with a status event whose Final flag is set.
type StreamableTaskHandler interface {
	HandleTaskStreaming(ctx context.Context, task *types.Task, message types.Message, publish EventPublisher) error
}

// TaskHandlerFunc adapts a function to the TaskHandler interface
type TaskHandlerFunc func(ctx context.Context, task *types.Task, message types.Message) (types.TaskStatus, []types.Artifact, error)

// HandleTask implements TaskHandler
func (f TaskHandlerFunc) HandleTask(ctx context.Context, task *types.Task, message types.Message) (types.TaskStatus, []types.Artifact, error) {
	return f(ctx, task, message)
}

// StreamableTaskHandlerFunc adapts a function to the StreamableTaskHandler interface
type StreamableTaskHandlerFunc func(ctx context.Context, task *types.Task, message types.Message, publish EventPublisher) error

// HandleTaskStreaming implements StreamableTaskHandler
func (f StreamableTaskHandlerFunc) HandleTaskStreaming(ctx context.Context, task *types.Task, message types.Message, publish EventPublisher) error {
	return f(ctx, task, message, publish)
}
