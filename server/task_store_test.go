package server_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentmesh/a2a-go/server"
	"github.com/agentmesh/a2a-go/server/config"
	"github.com/agentmesh/a2a-go/types"
)

func intPtr(n int) *int {
	return &n
}

func TestInMemoryTaskStore_Upsert(t *testing.T) {
	store := server.NewInMemoryTaskStore(zap.NewNop())
	ctx := context.Background()

	sessionID := "session-1"
	params := types.TaskSendParams{
		ID:        "task-1",
		SessionID: &sessionID,
		Message:   types.NewUserTextMessage("hello"),
	}

	task, err := store.Upsert(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, &sessionID, task.SessionID)
	assert.Equal(t, types.TaskStateSubmitted, task.Status.State)
	require.Len(t, task.History, 1)
	assert.Equal(t, "hello", types.ExtractText(task.History[0]))

	params.Message = types.NewUserTextMessage("again")
	task, err = store.Upsert(ctx, params)
	require.NoError(t, err)
	require.Len(t, task.History, 2)
	assert.Equal(t, "again", types.ExtractText(task.History[1]))
}

func TestInMemoryTaskStore_Get(t *testing.T) {
	store := server.NewInMemoryTaskStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, server.ErrTaskNotFound)

	_, err = store.Upsert(ctx, types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("hello"),
	})
	require.NoError(t, err)

	task, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
}

func TestInMemoryTaskStore_GetReturnsCopy(t *testing.T) {
	store := server.NewInMemoryTaskStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.Upsert(ctx, types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("hello"),
	})
	require.NoError(t, err)

	first, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	first.History[0] = types.NewUserTextMessage("mutated")
	first.Status.State = types.TaskStateFailed

	second, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", types.ExtractText(second.History[0]))
	assert.Equal(t, types.TaskStateSubmitted, second.Status.State)
}

func TestInMemoryTaskStore_Update(t *testing.T) {
	store := server.NewInMemoryTaskStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.Update(ctx, "missing", types.NewTaskStatus(types.TaskStateWorking, nil), nil)
	assert.ErrorIs(t, err, server.ErrTaskNotFound)

	_, err = store.Upsert(ctx, types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("hello"),
	})
	require.NoError(t, err)

	reply := types.NewAgentTextMessage("done")
	artifact := types.Artifact{Parts: []types.Part{types.CreateTextPart("result")}}

	task, err := store.Update(ctx, "task-1", types.NewTaskStatus(types.TaskStateCompleted, &reply), []types.Artifact{artifact})
	require.NoError(t, err)
	assert.Equal(t, types.TaskStateCompleted, task.Status.State)
	require.Len(t, task.History, 2)
	assert.Equal(t, "done", types.ExtractText(task.History[1]))
	require.Len(t, task.Artifacts, 1)

	// Status without a message leaves the history untouched
	task, err = store.Update(ctx, "task-1", types.NewTaskStatus(types.TaskStateWorking, nil), nil)
	require.NoError(t, err)
	assert.Len(t, task.History, 2)
}

func TestHistoryView(t *testing.T) {
	task := &types.Task{
		ID: "task-1",
		History: []types.Message{
			types.NewUserTextMessage("one"),
			types.NewAgentTextMessage("two"),
			types.NewUserTextMessage("three"),
		},
	}

	tests := []struct {
		name          string
		historyLength *int
		expected      []string
	}{
		{
			name:          "nil length yields empty view",
			historyLength: nil,
			expected:      []string{},
		},
		{
			name:          "zero length yields empty view",
			historyLength: intPtr(0),
			expected:      []string{},
		},
		{
			name:          "negative length yields empty view",
			historyLength: intPtr(-1),
			expected:      []string{},
		},
		{
			name:          "length smaller than history returns the tail",
			historyLength: intPtr(2),
			expected:      []string{"two", "three"},
		},
		{
			name:          "length larger than history returns everything",
			historyLength: intPtr(10),
			expected:      []string{"one", "two", "three"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := server.HistoryView(task, tt.historyLength)
			require.Len(t, view, len(tt.expected))
			for i, text := range tt.expected {
				assert.Equal(t, text, types.ExtractText(view[i]))
			}
		})
	}
}

func TestHistoryView_ReturnsFreshSlice(t *testing.T) {
	task := &types.Task{
		ID:      "task-1",
		History: []types.Message{types.NewUserTextMessage("one")},
	}

	view := server.HistoryView(task, intPtr(1))
	require.Len(t, view, 1)
	view[0] = types.NewUserTextMessage("mutated")

	assert.Equal(t, "one", types.ExtractText(task.History[0]))
}

func TestNewTaskStore(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "empty provider defaults to memory", provider: "", wantErr: false},
		{name: "memory provider", provider: "memory", wantErr: false},
		{name: "unknown provider is rejected", provider: "cassandra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := server.NewTaskStore(ctx, config.StorageConfig{Provider: tt.provider}, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}
