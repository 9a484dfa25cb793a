package server

import (
	"context"

	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// DefaultTaskManager is a complete task manager: it inherits the
// task-addressed operations from InMemoryTaskManager and drives
// application-supplied handlers for tasks/send and tasks/sendSubscribe.
// Resubscription attaches a live-tail subscriber; nothing is replayed.
type DefaultTaskManager struct {
	*InMemoryTaskManager

	handler              TaskHandler
	streamingHandler     StreamableTaskHandler
	supportedOutputModes []string
	pushEnabled          bool
	pushSender           PushNotificationSender
	logger               *zap.Logger
}

var _ TaskManager = (*DefaultTaskManager)(nil)

// NewDefaultTaskManager creates a task manager that runs the given handler.
// Push notifications are accepted by default; disable them to have the
// manager answer PushNotificationNotSupported instead.
func NewDefaultTaskManager(base *InMemoryTaskManager, handler TaskHandler, logger *zap.Logger) *DefaultTaskManager {
	return &DefaultTaskManager{
		InMemoryTaskManager: base,
		handler:             handler,
		pushEnabled:         true,
		logger:              logger,
	}
}

// SetStreamingHandler installs the handler used for tasks/sendSubscribe.
// Without one, streaming sends answer UnsupportedOperation.
func (tm *DefaultTaskManager) SetStreamingHandler(handler StreamableTaskHandler) {
	tm.streamingHandler = handler
}

// SetSupportedOutputModes declares what the agent can produce. Empty means
// unconstrained.
func (tm *DefaultTaskManager) SetSupportedOutputModes(modes []string) {
	tm.supportedOutputModes = modes
}

// SetPushNotificationsEnabled toggles acceptance of push notification configs
func (tm *DefaultTaskManager) SetPushNotificationsEnabled(enabled bool) {
	tm.pushEnabled = enabled
}

// SetPushNotificationSender installs the webhook sender used when tasks
// reach a terminal state
func (tm *DefaultTaskManager) SetPushNotificationSender(sender PushNotificationSender) {
	tm.pushSender = sender
}

// OnSendTask runs the task to completion and returns its final snapshot
func (tm *DefaultTaskManager) OnSendTask(ctx context.Context, req *types.SendTaskRequest) *types.SendTaskResponse {
	params := req.Params
	tm.logger.Info("sending task", zap.String("task_id", params.ID))

	if tm.handler == nil {
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewUnsupportedOperationError()}
	}

	if !AreModalitiesCompatible(tm.supportedOutputModes, params.AcceptedOutputModes) {
		tm.logger.Warn("unsupported output modes requested",
			zap.String("task_id", params.ID),
			zap.Strings("accepted", params.AcceptedOutputModes))
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewContentTypeNotSupportedError()}
	}

	if params.PushNotification != nil && !tm.pushEnabled {
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewPushNotificationNotSupportedError()}
	}

	task, err := tm.UpsertTask(ctx, params)
	if err != nil {
		tm.logger.Error("failed to upsert task", zap.Error(err))
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
	}

	if params.PushNotification != nil {
		cfg := types.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: *params.PushNotification}
		if err := tm.SetPushNotificationConfig(ctx, cfg); err != nil {
			tm.logger.Error("failed to store push notification config", zap.Error(err))
			return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
		}
	}

	status, artifacts, err := tm.handler.HandleTask(ctx, task, params.Message)
	if err != nil {
		tm.logger.Error("task handler failed", zap.String("task_id", params.ID), zap.Error(err))
		failedMsg := types.NewAgentTextMessage(err.Error())
		if _, updateErr := tm.UpdateStore(ctx, params.ID, types.NewTaskStatus(types.TaskStateFailed, &failedMsg), nil); updateErr != nil {
			tm.logger.Error("failed to record task failure", zap.Error(updateErr))
		}
		tm.notifyWebhook(ctx, params.ID)
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
	}

	updated, err := tm.UpdateStore(ctx, params.ID, status, artifacts)
	if err != nil {
		tm.logger.Error("failed to update task", zap.Error(err))
		return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
	}

	if updated.Status.State.IsFinal() {
		tm.notifyWebhook(ctx, params.ID)
	}

	// The send response carries the task as-is; trimming the history is
	// opt-in, unlike tasks/get where it is the default.
	if params.HistoryLength != nil {
		updated.History = HistoryView(updated, params.HistoryLength)
	}
	return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: updated}
}

// OnSendTaskSubscribe starts the task and returns its event stream
func (tm *DefaultTaskManager) OnSendTaskSubscribe(ctx context.Context, req *types.SendTaskStreamingRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse) {
	params := req.Params
	tm.logger.Info("sending task with subscription", zap.String("task_id", params.ID))

	if tm.streamingHandler == nil {
		return nil, NewNotImplementedError(req.ID)
	}

	if !AreModalitiesCompatible(tm.supportedOutputModes, params.AcceptedOutputModes) {
		tm.logger.Warn("unsupported output modes requested",
			zap.String("task_id", params.ID),
			zap.Strings("accepted", params.AcceptedOutputModes))
		return nil, NewIncompatibleTypesError(req.ID)
	}

	if params.PushNotification != nil && !tm.pushEnabled {
		return nil, types.NewErrorResponse(req.ID, types.NewPushNotificationNotSupportedError())
	}

	task, err := tm.UpsertTask(ctx, params)
	if err != nil {
		tm.logger.Error("failed to upsert task", zap.Error(err))
		return nil, types.NewErrorResponse(req.ID, types.NewInternalError(err.Error()))
	}

	if params.PushNotification != nil {
		cfg := types.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: *params.PushNotification}
		if err := tm.SetPushNotificationConfig(ctx, cfg); err != nil {
			tm.logger.Error("failed to store push notification config", zap.Error(err))
			return nil, types.NewErrorResponse(req.ID, types.NewInternalError(err.Error()))
		}
	}

	queue, err := tm.SetupSubscriber(ctx, params.ID, false)
	if err != nil {
		return nil, types.NewErrorResponse(req.ID, types.NewInternalError(err.Error()))
	}

	// The executor outlives the HTTP request: a subscriber hanging up only
	// detaches its queue, it must not cancel the running task.
	go tm.runStreamingTask(context.WithoutCancel(ctx), task, params.Message)

	return tm.DequeueEvents(ctx, req.ID, params.ID, queue), nil
}

// OnResubscribeToTask attaches a live-tail subscriber to an active task
func (tm *DefaultTaskManager) OnResubscribeToTask(ctx context.Context, req *types.TaskResubscriptionRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse) {
	tm.logger.Info("resubscribing to task", zap.String("task_id", req.Params.ID))

	queue, err := tm.SetupSubscriber(ctx, req.Params.ID, true)
	if err != nil {
		return nil, types.NewErrorResponse(req.ID, types.NewTaskNotFoundError())
	}

	return tm.DequeueEvents(ctx, req.ID, req.Params.ID, queue), nil
}

// runStreamingTask drives the streaming handler, mirroring every published
// event into the store before fanning it out. The first event is always the
// WORKING transition; the manager guarantees the stream terminates with
// exactly one final event even when the handler misbehaves.
func (tm *DefaultTaskManager) runStreamingTask(ctx context.Context, task *types.Task, message types.Message) {
	taskID := task.ID
	finalSeen := false

	publish := func(event types.TaskEvent) {
		if finalSeen {
			tm.logger.Warn("event published after final event, dropping",
				zap.String("task_id", taskID))
			return
		}

		switch ev := event.(type) {
		case *types.TaskStatusUpdateEvent:
			ev.ID = taskID
			if _, err := tm.UpdateStore(ctx, taskID, ev.Status, nil); err != nil {
				tm.logger.Error("failed to mirror status event", zap.Error(err))
			}
			if ev.Final {
				finalSeen = true
			}
			if ev.Status.State.IsFinal() {
				tm.notifyWebhook(ctx, taskID)
			}
		case *types.TaskArtifactUpdateEvent:
			ev.ID = taskID
			workingStatus := types.NewTaskStatus(types.TaskStateWorking, nil)
			if _, err := tm.UpdateStore(ctx, taskID, workingStatus, []types.Artifact{ev.Artifact}); err != nil {
				tm.logger.Error("failed to mirror artifact event", zap.Error(err))
			}
		}

		tm.PublishEvent(taskID, event)
	}

	publish(&types.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: types.NewTaskStatus(types.TaskStateWorking, nil),
		Final:  false,
	})

	if err := tm.streamingHandler.HandleTaskStreaming(ctx, task, message, publish); err != nil {
		tm.logger.Error("streaming task handler failed",
			zap.String("task_id", taskID), zap.Error(err))

		failedMsg := types.NewAgentTextMessage(err.Error())
		if _, updateErr := tm.UpdateStore(ctx, taskID, types.NewTaskStatus(types.TaskStateFailed, &failedMsg), nil); updateErr != nil {
			tm.logger.Error("failed to record task failure", zap.Error(updateErr))
		}
		tm.notifyWebhook(ctx, taskID)
		tm.PublishEvent(taskID, types.NewInternalError(err.Error()))
		return
	}

	if !finalSeen {
		tm.logger.Warn("streaming handler returned without a final event",
			zap.String("task_id", taskID))
		publish(&types.TaskStatusUpdateEvent{
			ID:     taskID,
			Status: types.NewTaskStatus(types.TaskStateCompleted, nil),
			Final:  true,
		})
	}
}

// notifyWebhook delivers a push notification when a sender is installed and
// the task has a registered webhook. Delivery failures are logged, never
// surfaced to the RPC caller.
func (tm *DefaultTaskManager) notifyWebhook(ctx context.Context, taskID string) {
	if tm.pushSender == nil || !tm.HasPushNotificationConfig(taskID) {
		return
	}

	cfg, err := tm.GetPushNotificationConfig(ctx, taskID)
	if err != nil {
		tm.logger.Error("failed to load push notification config", zap.Error(err))
		return
	}

	task, err := tm.Store().Get(ctx, taskID)
	if err != nil {
		tm.logger.Error("failed to load task for push notification", zap.Error(err))
		return
	}

	if err := tm.pushSender.SendTaskUpdate(ctx, cfg.PushNotificationConfig, task); err != nil {
		tm.logger.Error("push notification delivery failed",
			zap.String("task_id", taskID), zap.Error(err))
	}
}
