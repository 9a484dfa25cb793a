package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// TaskManager handles the seven A2A operations. Unary handlers return a
// typed response carrying either a result or a JSON-RPC error. Streaming
// handlers return either an event channel or an immediate error response,
// never both.
type TaskManager interface {
	// OnGetTask handles tasks/get
	OnGetTask(ctx context.Context, req *types.GetTaskRequest) *types.GetTaskResponse

	// OnSendTask handles tasks/send
	OnSendTask(ctx context.Context, req *types.SendTaskRequest) *types.SendTaskResponse

	// OnSendTaskSubscribe handles tasks/sendSubscribe
	OnSendTaskSubscribe(ctx context.Context, req *types.SendTaskStreamingRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse)

	// OnCancelTask handles tasks/cancel
	OnCancelTask(ctx context.Context, req *types.CancelTaskRequest) *types.CancelTaskResponse

	// OnSetTaskPushNotification handles tasks/pushNotification/set
	OnSetTaskPushNotification(ctx context.Context, req *types.SetTaskPushNotificationRequest) *types.SetTaskPushNotificationResponse

	// OnGetTaskPushNotification handles tasks/pushNotification/get
	OnGetTaskPushNotification(ctx context.Context, req *types.GetTaskPushNotificationRequest) *types.GetTaskPushNotificationResponse

	// OnResubscribeToTask handles tasks/resubscribe
	OnResubscribeToTask(ctx context.Context, req *types.TaskResubscriptionRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse)
}

// InMemoryTaskManager implements the task-addressed operations on top of a
// TaskStore and a SubscriberRegistry. It does not execute tasks itself:
// OnSendTask and OnSendTaskSubscribe answer UnsupportedOperation until an
// embedding type overrides them, the way DefaultTaskManager does.
type InMemoryTaskManager struct {
	store    TaskStore
	registry *SubscriberRegistry
	logger   *zap.Logger

	pushMu      sync.RWMutex
	pushConfigs map[string]types.PushNotificationConfig
}

var _ TaskManager = (*InMemoryTaskManager)(nil)

// NewInMemoryTaskManager creates a task manager backed by the given store
// and subscriber registry
func NewInMemoryTaskManager(store TaskStore, registry *SubscriberRegistry, logger *zap.Logger) *InMemoryTaskManager {
	return &InMemoryTaskManager{
		store:       store,
		registry:    registry,
		logger:      logger,
		pushConfigs: make(map[string]types.PushNotificationConfig),
	}
}

// Store exposes the underlying task store
func (tm *InMemoryTaskManager) Store() TaskStore {
	return tm.store
}

// Registry exposes the underlying subscriber registry
func (tm *InMemoryTaskManager) Registry() *SubscriberRegistry {
	return tm.registry
}

// OnGetTask returns the task with its history trimmed to the requested view
func (tm *InMemoryTaskManager) OnGetTask(ctx context.Context, req *types.GetTaskRequest) *types.GetTaskResponse {
	tm.logger.Info("getting task", zap.String("task_id", req.Params.ID))

	task, err := tm.store.Get(ctx, req.Params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return &types.GetTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewTaskNotFoundError()}
		}
		return &types.GetTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
	}

	task.History = HistoryView(task, req.Params.HistoryLength)
	return &types.GetTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: task}
}

// OnSendTask answers UnsupportedOperation; embedders override it with their
// task execution
func (tm *InMemoryTaskManager) OnSendTask(ctx context.Context, req *types.SendTaskRequest) *types.SendTaskResponse {
	return &types.SendTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewUnsupportedOperationError()}
}

// OnSendTaskSubscribe answers UnsupportedOperation; embedders override it
// with their streaming task execution
func (tm *InMemoryTaskManager) OnSendTaskSubscribe(ctx context.Context, req *types.SendTaskStreamingRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse) {
	return nil, types.NewErrorResponse(req.ID, types.NewUnsupportedOperationError())
}

// OnCancelTask refuses cancellation for every task it can find. Tasks run to
// completion once accepted; a missing task is reported as such.
func (tm *InMemoryTaskManager) OnCancelTask(ctx context.Context, req *types.CancelTaskRequest) *types.CancelTaskResponse {
	tm.logger.Info("cancelling task", zap.String("task_id", req.Params.ID))

	if _, err := tm.store.Get(ctx, req.Params.ID); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return &types.CancelTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewTaskNotFoundError()}
		}
		return &types.CancelTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewInternalError(err.Error())}
	}

	return &types.CancelTaskResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: types.NewTaskNotCancelableError()}
}

// OnSetTaskPushNotification stores the webhook config for an existing task
func (tm *InMemoryTaskManager) OnSetTaskPushNotification(ctx context.Context, req *types.SetTaskPushNotificationRequest) *types.SetTaskPushNotificationResponse {
	tm.logger.Info("setting push notification config", zap.String("task_id", req.Params.ID))

	if err := tm.SetPushNotificationConfig(ctx, req.Params); err != nil {
		tm.logger.Error("failed to set push notification config", zap.Error(err))
		rpcErr := types.NewInternalError(err.Error())
		rpcErr.Message = "An error occurred while setting push notification info"
		return &types.SetTaskPushNotificationResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: rpcErr}
	}

	result := req.Params
	return &types.SetTaskPushNotificationResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &result}
}

// OnGetTaskPushNotification reads back the webhook config of an existing task
func (tm *InMemoryTaskManager) OnGetTaskPushNotification(ctx context.Context, req *types.GetTaskPushNotificationRequest) *types.GetTaskPushNotificationResponse {
	tm.logger.Info("getting push notification config", zap.String("task_id", req.Params.ID))

	result, err := tm.GetPushNotificationConfig(ctx, req.Params.ID)
	if err != nil {
		tm.logger.Error("failed to get push notification config", zap.Error(err))
		rpcErr := types.NewInternalError(err.Error())
		rpcErr.Message = "An error occurred while getting push notification info"
		return &types.GetTaskPushNotificationResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Error: rpcErr}
	}

	return &types.GetTaskPushNotificationResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: result}
}

// OnResubscribeToTask answers UnsupportedOperation. The registry supports
// live-tail resubscription through SetupSubscriber; agents that want it
// override this method.
func (tm *InMemoryTaskManager) OnResubscribeToTask(ctx context.Context, req *types.TaskResubscriptionRequest) (<-chan types.SendTaskStreamingResponse, *types.JSONRPCResponse) {
	return nil, types.NewErrorResponse(req.ID, types.NewUnsupportedOperationError())
}

// UpsertTask creates or extends the task addressed by the send params
func (tm *InMemoryTaskManager) UpsertTask(ctx context.Context, params types.TaskSendParams) (*types.Task, error) {
	return tm.store.Upsert(ctx, params)
}

// UpdateStore replaces the task status and appends artifacts
func (tm *InMemoryTaskManager) UpdateStore(ctx context.Context, taskID string, status types.TaskStatus, artifacts []types.Artifact) (*types.Task, error) {
	return tm.store.Update(ctx, taskID, status, artifacts)
}

// SetupSubscriber attaches a new event queue to the task. Resubscriptions
// require the task to have active subscribers already.
func (tm *InMemoryTaskManager) SetupSubscriber(ctx context.Context, taskID string, isResubscribe bool) (*EventQueue, error) {
	return tm.registry.Subscribe(taskID, isResubscribe)
}

// PublishEvent broadcasts an event to the task's subscribers
func (tm *InMemoryTaskManager) PublishEvent(taskID string, event types.TaskEvent) {
	tm.registry.Publish(taskID, event)
}

// DequeueEvents drains a subscriber queue into a stream of JSON-RPC frames.
// The stream ends after an error event or a final status event, when the
// queue closes, or when the context is done. The queue is detached on exit.
func (tm *InMemoryTaskManager) DequeueEvents(ctx context.Context, requestID any, taskID string, queue *EventQueue) <-chan types.SendTaskStreamingResponse {
	out := make(chan types.SendTaskStreamingResponse)

	go func() {
		defer close(out)
		defer tm.registry.Detach(taskID, queue)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-queue.Events():
				if !ok {
					return
				}

				if rpcErr, isErr := event.(*types.JSONRPCError); isErr {
					frame := types.SendTaskStreamingResponse{JSONRPC: types.JSONRPCVersion, ID: requestID, Error: rpcErr}
					select {
					case out <- frame:
					case <-ctx.Done():
					}
					return
				}

				frame := types.SendTaskStreamingResponse{JSONRPC: types.JSONRPCVersion, ID: requestID, Result: event}
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}

				if status, isStatus := event.(*types.TaskStatusUpdateEvent); isStatus && status.Final {
					return
				}
			}
		}
	}()

	return out
}

// SetPushNotificationConfig stores a webhook config, requiring the target
// task to exist
func (tm *InMemoryTaskManager) SetPushNotificationConfig(ctx context.Context, cfg types.TaskPushNotificationConfig) error {
	if _, err := tm.store.Get(ctx, cfg.ID); err != nil {
		return fmt.Errorf("task not found for %s: %w", cfg.ID, err)
	}

	tm.pushMu.Lock()
	tm.pushConfigs[cfg.ID] = cfg.PushNotificationConfig
	tm.pushMu.Unlock()
	return nil
}

// GetPushNotificationConfig reads back a stored webhook config
func (tm *InMemoryTaskManager) GetPushNotificationConfig(ctx context.Context, taskID string) (*types.TaskPushNotificationConfig, error) {
	if _, err := tm.store.Get(ctx, taskID); err != nil {
		return nil, fmt.Errorf("task not found for %s: %w", taskID, err)
	}

	tm.pushMu.RLock()
	cfg, ok := tm.pushConfigs[taskID]
	tm.pushMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("push notification config not found for %s", taskID)
	}

	return &types.TaskPushNotificationConfig{ID: taskID, PushNotificationConfig: cfg}, nil
}

// HasPushNotificationConfig reports whether a webhook is registered for the task
func (tm *InMemoryTaskManager) HasPushNotificationConfig(taskID string) bool {
	tm.pushMu.RLock()
	defer tm.pushMu.RUnlock()
	_, ok := tm.pushConfigs[taskID]
	return ok
}
