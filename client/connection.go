package client

import (
	"context"
	"fmt"

	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// TaskCallback receives task snapshots as a remote agent makes progress.
// For streaming agents it fires once per status update; for unary agents
// exactly once.
type TaskCallback func(task *types.Task)

// RemoteAgentConnection wraps an A2A client with the conversation-level
// plumbing a host agent needs: it picks streaming or unary transport from
// the agent card, propagates request metadata onto replies, and chains
// message ids so partial replies can be correlated with their request.
type RemoteAgentConnection struct {
	card   types.AgentCard
	client A2AClient
	logger *zap.Logger
}

// NewRemoteAgentConnection creates a connection to the agent described by card
func NewRemoteAgentConnection(card types.AgentCard, logger *zap.Logger) *RemoteAgentConnection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteAgentConnection{
		card:   card,
		client: NewClientWithLogger(card.URL, logger),
		logger: logger,
	}
}

// SetClient replaces the underlying A2A client, mainly for tests
func (rc *RemoteAgentConnection) SetClient(client A2AClient) {
	rc.client = client
}

// Card returns the agent card this connection was built from
func (rc *RemoteAgentConnection) Card() types.AgentCard {
	return rc.card
}

// SendTask dispatches the task to the remote agent. The transport is chosen
// from the card's streaming capability; callback may be nil.
func (rc *RemoteAgentConnection) SendTask(ctx context.Context, params types.TaskSendParams, callback TaskCallback) (*types.Task, error) {
	if rc.card.Capabilities.Streaming {
		return rc.sendTaskStreaming(ctx, params, callback)
	}
	return rc.sendTaskUnary(ctx, params, callback)
}

func (rc *RemoteAgentConnection) sendTaskStreaming(ctx context.Context, params types.TaskSendParams, callback TaskCallback) (*types.Task, error) {
	task := &types.Task{
		ID:        params.ID,
		SessionID: params.SessionID,
		Status:    types.NewTaskStatus(types.TaskStateSubmitted, &params.Message),
		History:   []types.Message{params.Message},
		Metadata:  params.Metadata,
	}
	if callback != nil {
		callback(task)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventChan := make(chan types.SendTaskStreamingResponse)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		errChan <- rc.client.SendTaskStreaming(streamCtx, params, eventChan)
	}()

	for event := range eventChan {
		if event.Error != nil {
			rc.logger.Error("remote agent stream error",
				zap.String("task_id", params.ID),
				zap.Int("code", event.Error.Code),
				zap.String("message", event.Error.Message))
			cancel()
			<-errChan
			return nil, event.Error
		}

		statusEvent, ok := event.Result.(*types.TaskStatusUpdateEvent)
		if !ok {
			// Artifact updates do not carry conversation messages
			if artifactEvent, isArtifact := event.Result.(*types.TaskArtifactUpdateEvent); isArtifact {
				task.Artifacts = append(task.Artifacts, artifactEvent.Artifact)
			}
			continue
		}

		if statusEvent.Status.Message != nil {
			rc.adoptReplyMessage(statusEvent.Status.Message, params.Metadata)
		}

		task.Status = statusEvent.Status
		if callback != nil {
			callback(task)
		}

		if statusEvent.Final {
			break
		}
	}
	cancel()

	if err := <-errChan; err != nil && ctx.Err() == nil {
		// The deliberate cancel after the final event is not a failure
		if task.Status.State.IsFinal() {
			return task, nil
		}
		return nil, err
	}

	return task, nil
}

func (rc *RemoteAgentConnection) sendTaskUnary(ctx context.Context, params types.TaskSendParams, callback TaskCallback) (*types.Task, error) {
	task, err := rc.client.SendTask(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("remote agent send failed: %w", err)
	}

	if task.Status.Message != nil {
		rc.adoptReplyMessage(task.Status.Message, params.Metadata)
	}

	if callback != nil {
		callback(task)
	}

	return task, nil
}

// adoptReplyMessage merges request metadata into a reply message and rotates
// its message id so replies form a chain back to the originating request.
// Keys already present on the reply win over request-side values.
func (rc *RemoteAgentConnection) adoptReplyMessage(message *types.Message, requestMetadata map[string]any) {
	if message.Metadata == nil {
		message.Metadata = make(map[string]any)
	}

	for key, value := range requestMetadata {
		if _, exists := message.Metadata[key]; !exists {
			message.Metadata[key] = value
		}
	}

	if previousID, ok := message.Metadata["message_id"]; ok {
		message.Metadata["last_message_id"] = previousID
	}
	message.Metadata["message_id"] = uuid.New().String()
}
