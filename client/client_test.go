package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/a2a-go/client"
	"github.com/agentmesh/a2a-go/types"
)

func decodeRequest(t *testing.T, r *http.Request) types.JSONRPCRequest {
	t.Helper()
	var req types.JSONRPCRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func writeResult(t *testing.T, w http.ResponseWriter, id any, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(types.NewSuccessResponse(id, result)))
}

func writeError(t *testing.T, w http.ResponseWriter, id any, rpcErr *types.JSONRPCError) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	require.NoError(t, json.NewEncoder(w).Encode(types.NewErrorResponse(id, rpcErr)))
}

func TestClient_SendTask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, types.JSONRPCVersion, req.JSONRPC)
		assert.Equal(t, types.MethodTasksSend, req.Method)
		assert.NotEmpty(t, req.ID)

		var params types.TaskSendParams
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "task-1", params.ID)

		reply := types.NewAgentTextMessage("done")
		writeResult(t, w, req.ID, types.Task{
			ID:     params.ID,
			Status: types.NewTaskStatus(types.TaskStateCompleted, &reply),
		})
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	task, err := c.SendTask(context.Background(), types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, types.TaskStateCompleted, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Equal(t, "done", types.ExtractText(*task.Status.Message))
}

func TestClient_GetTaskError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		writeError(t, w, req.ID, types.NewTaskNotFoundError())
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	_, err := c.GetTask(context.Background(), types.TaskQueryParams{ID: "missing"})
	require.Error(t, err)

	var rpcErr *types.JSONRPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, types.ErrorCodeTaskNotFound, rpcErr.Code)
}

func TestClient_CancelTask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, types.MethodTasksCancel, req.Method)
		writeError(t, w, req.ID, types.NewTaskNotCancelableError())
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	_, err := c.CancelTask(context.Background(), types.TaskIdParams{ID: "task-1"})
	require.Error(t, err)

	var rpcErr *types.JSONRPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, types.ErrorCodeTaskNotCancelable, rpcErr.Code)
}

func TestClient_PushNotificationConfig(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		switch req.Method {
		case types.MethodTasksPushNotificationSet:
			var params types.TaskPushNotificationConfig
			require.NoError(t, json.Unmarshal(req.Params, &params))
			writeResult(t, w, req.ID, params)
		case types.MethodTasksPushNotificationGet:
			writeResult(t, w, req.ID, types.TaskPushNotificationConfig{
				ID:                     "task-1",
				PushNotificationConfig: types.PushNotificationConfig{URL: "https://example.com/hook"},
			})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	ctx := context.Background()

	set, err := c.SetTaskPushNotification(ctx, types.TaskPushNotificationConfig{
		ID:                     "task-1",
		PushNotificationConfig: types.PushNotificationConfig{URL: "https://example.com/hook"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", set.PushNotificationConfig.URL)

	got, err := c.GetTaskPushNotification(ctx, types.TaskIdParams{ID: "task-1"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.ID)
	assert.Equal(t, "https://example.com/hook", got.PushNotificationConfig.URL)
}

func TestClient_SendTaskStreaming(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, types.MethodTasksSendSubscribe, req.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		frames := []types.SendTaskStreamingResponse{
			{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &types.TaskStatusUpdateEvent{
				ID:     "task-1",
				Status: types.NewTaskStatus(types.TaskStateWorking, nil),
			}},
			{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &types.TaskArtifactUpdateEvent{
				ID:       "task-1",
				Artifact: types.Artifact{Parts: []types.Part{types.CreateTextPart("chunk")}},
			}},
			{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &types.TaskStatusUpdateEvent{
				ID:     "task-1",
				Status: types.NewTaskStatus(types.TaskStateCompleted, nil),
				Final:  true,
			}},
		}

		// Interleave comment lines and a [DONE] marker; clients skip both
		fmt.Fprint(w, ": keep-alive\n\n")
		for _, frame := range frames {
			data, err := json.Marshal(frame)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	eventChan := make(chan types.SendTaskStreamingResponse, 8)

	err := c.SendTaskStreaming(context.Background(), types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("go"),
	}, eventChan)
	require.NoError(t, err)
	close(eventChan)

	var events []types.SendTaskStreamingResponse
	for event := range eventChan {
		events = append(events, event)
	}
	require.Len(t, events, 3)

	working, ok := events[0].Result.(*types.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, types.TaskStateWorking, working.Status.State)

	artifact, ok := events[1].Result.(*types.TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "task-1", artifact.ID)

	final, ok := events[2].Result.(*types.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
}

func TestClient_StreamingOutlivesUnaryTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		working := types.SendTaskStreamingResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &types.TaskStatusUpdateEvent{
			ID:     "task-1",
			Status: types.NewTaskStatus(types.TaskStateWorking, nil),
		}}
		data, err := json.Marshal(working)
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		// Keep the stream open past the unary timeout before finishing
		time.Sleep(150 * time.Millisecond)

		final := types.SendTaskStreamingResponse{JSONRPC: types.JSONRPCVersion, ID: req.ID, Result: &types.TaskStatusUpdateEvent{
			ID:     "task-1",
			Status: types.NewTaskStatus(types.TaskStateCompleted, nil),
			Final:  true,
		}}
		data, err = json.Marshal(final)
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}))
	defer ts.Close()

	cfg := client.DefaultConfig(ts.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := client.NewClientWithConfig(cfg)

	eventChan := make(chan types.SendTaskStreamingResponse, 4)
	err := c.SendTaskStreaming(context.Background(), types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("go"),
	}, eventChan)
	require.NoError(t, err, "the unary timeout must not cut the stream short")
	close(eventChan)

	var events []types.SendTaskStreamingResponse
	for event := range eventChan {
		events = append(events, event)
	}
	require.Len(t, events, 2)

	final, ok := events[1].Result.(*types.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
}

func TestClient_SendTaskStreamingErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		writeError(t, w, req.ID, types.NewUnsupportedOperationError())
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	eventChan := make(chan types.SendTaskStreamingResponse, 1)

	err := c.SendTaskStreaming(context.Background(), types.TaskSendParams{
		ID:      "task-1",
		Message: types.NewUserTextMessage("go"),
	}, eventChan)
	require.Error(t, err)

	var rpcErr *types.JSONRPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, types.ErrorCodeUnsupportedOperation, rpcErr.Code)
}

func TestClient_ResubscribeToTask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, types.MethodTasksResubscribe, req.Method)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		frame := types.SendTaskStreamingResponse{
			JSONRPC: types.JSONRPCVersion,
			ID:      req.ID,
			Result: &types.TaskStatusUpdateEvent{
				ID:     "task-1",
				Status: types.NewTaskStatus(types.TaskStateCompleted, nil),
				Final:  true,
			},
		}
		data, err := json.Marshal(frame)
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}))
	defer ts.Close()

	c := client.NewClient(ts.URL)
	eventChan := make(chan types.SendTaskStreamingResponse, 1)

	err := c.ResubscribeToTask(context.Background(), types.TaskIdParams{ID: "task-1"}, eventChan)
	require.NoError(t, err)
	close(eventChan)

	event := <-eventChan
	final, ok := event.Result.(*types.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
}

func TestClient_RetriesTransportFailures(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			// Drop the first connection mid-flight
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		req := decodeRequest(t, r)
		writeResult(t, w, req.ID, types.Task{
			ID:     "task-1",
			Status: types.NewTaskStatus(types.TaskStateCompleted, nil),
		})
	}))
	defer ts.Close()

	cfg := client.DefaultConfig(ts.URL)
	cfg.RetryDelay = 10 * time.Millisecond
	c := client.NewClientWithConfig(cfg)

	task, err := c.GetTask(context.Background(), types.TaskQueryParams{ID: "task-1"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, 2, attempts)
}

func TestClient_ConfigAccessors(t *testing.T) {
	c := client.NewClient("http://localhost:8080")
	assert.Equal(t, "http://localhost:8080", c.GetBaseURL())
	assert.NotNil(t, c.GetLogger())

	c.SetTimeout(5 * time.Second)
	c.SetLogger(nil)
	assert.NotNil(t, c.GetLogger(), "nil logger should fall back to a nop logger")
}
