package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/server/config"
	"github.com/agentmesh/a2a-go/types"
)

// ErrTaskNotFound is returned by stores when the task id is unknown.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists tasks. The in-memory implementation is the default;
// durable implementations plug in behind the same interface.
type TaskStore interface {
	// Upsert creates the task when the id is new, otherwise appends the
	// incoming message to its history. It returns a copy of the stored task.
	Upsert(ctx context.Context, params types.TaskSendParams) (*types.Task, error)

	// Get returns a copy of the stored task.
	Get(ctx context.Context, taskID string) (*types.Task, error)

	// Update replaces the task status and appends artifacts. The message
	// attached to the new status, if any, is appended to the history. It
	// returns a copy of the updated task.
	Update(ctx context.Context, taskID string, status types.TaskStatus, artifacts []types.Artifact) (*types.Task, error)
}

// NewTaskStore builds a task store from configuration. Unknown providers are
// rejected rather than silently falling back to memory.
func NewTaskStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (TaskStore, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewInMemoryTaskStore(logger), nil
	case "redis":
		return NewRedisTaskStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// InMemoryTaskStore keeps tasks in a mutex-guarded map. Reads and writes
// operate on copies so callers can never mutate stored state.
type InMemoryTaskStore struct {
	mu     sync.RWMutex
	tasks  map[string]*types.Task
	logger *zap.Logger
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates an empty in-memory task store
func NewInMemoryTaskStore(logger *zap.Logger) *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:  make(map[string]*types.Task),
		logger: logger,
	}
}

// Upsert creates the task when the id is new, otherwise appends the incoming
// message to its history
func (s *InMemoryTaskStore) Upsert(ctx context.Context, params types.TaskSendParams) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[params.ID]
	if !ok {
		task = &types.Task{
			ID:        params.ID,
			SessionID: params.SessionID,
			Status:    types.NewTaskStatus(types.TaskStateSubmitted, nil),
			History:   []types.Message{params.Message},
			Metadata:  params.Metadata,
		}
		s.tasks[params.ID] = task
		s.logger.Debug("task created", zap.String("task_id", params.ID))
		return copyTask(task), nil
	}

	task.History = append(task.History, params.Message)
	s.logger.Debug("task history appended", zap.String("task_id", params.ID),
		zap.Int("history_len", len(task.History)))
	return copyTask(task), nil
}

// Get returns a copy of the stored task
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(task), nil
}

// Update replaces the task status, appending the status message to the
// history and the artifacts to the artifact list
func (s *InMemoryTaskStore) Update(ctx context.Context, taskID string, status types.TaskStatus, artifacts []types.Artifact) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	applyTaskUpdate(task, status, artifacts)
	s.logger.Debug("task updated", zap.String("task_id", taskID),
		zap.String("state", status.State.String()))
	return copyTask(task), nil
}

// applyTaskUpdate mutates the stored task in place. Callers hold the store lock.
func applyTaskUpdate(task *types.Task, status types.TaskStatus, artifacts []types.Artifact) {
	task.Status = status
	if status.Message != nil {
		task.History = append(task.History, *status.Message)
	}
	if len(artifacts) > 0 {
		if task.Artifacts == nil {
			task.Artifacts = make([]types.Artifact, 0, len(artifacts))
		}
		task.Artifacts = append(task.Artifacts, artifacts...)
	}
}

// HistoryView returns the last n history entries as a fresh slice. A nil or
// non-positive n yields an empty view; the full history is never implied.
func HistoryView(task *types.Task, historyLength *int) []types.Message {
	if historyLength == nil || *historyLength <= 0 {
		return []types.Message{}
	}

	history := task.History
	if len(history) > *historyLength {
		history = history[len(history)-*historyLength:]
	}

	view := make([]types.Message, len(history))
	copy(view, history)
	return view
}

// copyTask returns a shallow-plus-slices copy of a task, enough to keep
// callers from aliasing the stored history and artifact slices.
func copyTask(task *types.Task) *types.Task {
	dup := *task
	if task.History != nil {
		dup.History = make([]types.Message, len(task.History))
		copy(dup.History, task.History)
	}
	if task.Artifacts != nil {
		dup.Artifacts = make([]types.Artifact, len(task.Artifacts))
		copy(dup.Artifacts, task.Artifacts)
	}
	return &dup
}
