package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// A2AClient defines the interface for an A2A protocol client
type A2AClient interface {
	// Task operations
	SendTask(ctx context.Context, params types.TaskSendParams) (*types.Task, error)
	GetTask(ctx context.Context, params types.TaskQueryParams) (*types.Task, error)
	CancelTask(ctx context.Context, params types.TaskIdParams) (*types.Task, error)

	// Streaming operations. Events are delivered on eventChan until the
	// stream terminates; the channel is closed by the caller, never by the
	// client.
	SendTaskStreaming(ctx context.Context, params types.TaskSendParams, eventChan chan<- types.SendTaskStreamingResponse) error
	ResubscribeToTask(ctx context.Context, params types.TaskIdParams, eventChan chan<- types.SendTaskStreamingResponse) error

	// Push notification configuration
	SetTaskPushNotification(ctx context.Context, params types.TaskPushNotificationConfig) (*types.TaskPushNotificationConfig, error)
	GetTaskPushNotification(ctx context.Context, params types.TaskIdParams) (*types.TaskPushNotificationConfig, error)

	// Discovery
	GetAgentCard(ctx context.Context) (*types.AgentCard, error)

	// Configuration
	SetTimeout(timeout time.Duration)
	SetHTTPClient(client *http.Client)
	GetBaseURL() string

	// Logger configuration
	SetLogger(logger *zap.Logger)
	GetLogger() *zap.Logger
}

var _ A2AClient = (*Client)(nil)

// Config holds configuration options for the A2A client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	Headers    map[string]string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		UserAgent:  "A2A-Go-Client/1.0",
		Headers:    make(map[string]string),
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		Logger:     zap.NewNop(),
	}
}

// Client represents an A2A protocol client
type Client struct {
	config *Config
	// httpClient carries the unary timeout; streamingClient shares its
	// transport but has none, an open SSE stream lives until the server
	// closes it or the context is cancelled.
	httpClient      *http.Client
	streamingClient *http.Client
	logger          *zap.Logger
}

// NewClient creates a new A2A client with default configuration
func NewClient(baseURL string) A2AClient {
	config := DefaultConfig(baseURL)
	return NewClientWithConfig(config)
}

// NewClientWithConfig creates a new A2A client with custom configuration
func NewClientWithConfig(config *Config) A2AClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:          config,
		httpClient:      httpClient,
		streamingClient: streamingClientFor(httpClient),
		logger:          logger,
	}
}

// streamingClientFor derives a client without an overall timeout from the
// unary client, reusing its transport and cookie jar.
func streamingClientFor(httpClient *http.Client) *http.Client {
	return &http.Client{
		Transport:     httpClient.Transport,
		CheckRedirect: httpClient.CheckRedirect,
		Jar:           httpClient.Jar,
	}
}

// NewClientWithLogger creates a new A2A client with a custom logger
func NewClientWithLogger(baseURL string, logger *zap.Logger) A2AClient {
	config := DefaultConfig(baseURL)
	config.Logger = logger
	return NewClientWithConfig(config)
}

// SendTask submits a message to the agent and waits for the task snapshot
func (c *Client) SendTask(ctx context.Context, params types.TaskSendParams) (*types.Task, error) {
	c.logger.Debug("sending task",
		zap.String("method", types.MethodTasksSend),
		zap.String("task_id", params.ID))

	var task types.Task
	if err := c.doRequest(ctx, types.MethodTasksSend, params, &task); err != nil {
		c.logger.Error("failed to send task", zap.Error(err), zap.String("task_id", params.ID))
		return nil, err
	}

	c.logger.Debug("task sent successfully", zap.String("task_id", params.ID))
	return &task, nil
}

// GetTask retrieves the current snapshot of a task
func (c *Client) GetTask(ctx context.Context, params types.TaskQueryParams) (*types.Task, error) {
	c.logger.Debug("retrieving task", zap.String("method", types.MethodTasksGet), zap.String("task_id", params.ID))

	var task types.Task
	if err := c.doRequest(ctx, types.MethodTasksGet, params, &task); err != nil {
		c.logger.Error("failed to retrieve task", zap.Error(err), zap.String("task_id", params.ID))
		return nil, err
	}

	c.logger.Debug("task retrieved successfully", zap.String("task_id", params.ID))
	return &task, nil
}

// CancelTask requests cancellation of a task
func (c *Client) CancelTask(ctx context.Context, params types.TaskIdParams) (*types.Task, error) {
	c.logger.Debug("cancelling task", zap.String("method", types.MethodTasksCancel), zap.String("task_id", params.ID))

	var task types.Task
	if err := c.doRequest(ctx, types.MethodTasksCancel, params, &task); err != nil {
		c.logger.Error("failed to cancel task", zap.Error(err), zap.String("task_id", params.ID))
		return nil, err
	}

	c.logger.Debug("task cancelled successfully", zap.String("task_id", params.ID))
	return &task, nil
}

// SetTaskPushNotification registers a webhook for task updates
func (c *Client) SetTaskPushNotification(ctx context.Context, params types.TaskPushNotificationConfig) (*types.TaskPushNotificationConfig, error) {
	c.logger.Debug("setting push notification config",
		zap.String("method", types.MethodTasksPushNotificationSet),
		zap.String("task_id", params.ID))

	var result types.TaskPushNotificationConfig
	if err := c.doRequest(ctx, types.MethodTasksPushNotificationSet, params, &result); err != nil {
		c.logger.Error("failed to set push notification config", zap.Error(err), zap.String("task_id", params.ID))
		return nil, err
	}

	return &result, nil
}

// GetTaskPushNotification retrieves the webhook registered for a task
func (c *Client) GetTaskPushNotification(ctx context.Context, params types.TaskIdParams) (*types.TaskPushNotificationConfig, error) {
	c.logger.Debug("getting push notification config",
		zap.String("method", types.MethodTasksPushNotificationGet),
		zap.String("task_id", params.ID))

	var result types.TaskPushNotificationConfig
	if err := c.doRequest(ctx, types.MethodTasksPushNotificationGet, params, &result); err != nil {
		c.logger.Error("failed to get push notification config", zap.Error(err), zap.String("task_id", params.ID))
		return nil, err
	}

	return &result, nil
}

// SendTaskStreaming submits a message and streams task events over SSE
func (c *Client) SendTaskStreaming(ctx context.Context, params types.TaskSendParams, eventChan chan<- types.SendTaskStreamingResponse) error {
	c.logger.Debug("starting task streaming",
		zap.String("method", types.MethodTasksSendSubscribe),
		zap.String("task_id", params.ID))

	return c.doStreamingRequest(ctx, types.MethodTasksSendSubscribe, params, eventChan)
}

// ResubscribeToTask reattaches to the event stream of an active task
func (c *Client) ResubscribeToTask(ctx context.Context, params types.TaskIdParams, eventChan chan<- types.SendTaskStreamingResponse) error {
	c.logger.Debug("resubscribing to task",
		zap.String("method", types.MethodTasksResubscribe),
		zap.String("task_id", params.ID))

	return c.doStreamingRequest(ctx, types.MethodTasksResubscribe, params, eventChan)
}

// GetAgentCard fetches the agent card from the well-known discovery path
func (c *Client) GetAgentCard(ctx context.Context) (*types.AgentCard, error) {
	resolver := NewAgentCardResolver(c.config.BaseURL)
	resolver.SetHTTPClient(c.httpClient)
	return resolver.GetAgentCard(ctx)
}

// doRequest performs a unary JSON-RPC call and decodes the result into out
func (c *Client) doRequest(ctx context.Context, method string, params any, out any) error {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return NewA2AClientJSONError(fmt.Sprintf("failed to marshal params: %v", err))
	}

	req := types.JSONRPCRequest{
		JSONRPC: types.JSONRPCVersion,
		ID:      uuid.New().String(),
		Method:  method,
		Params:  paramsBytes,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return NewA2AClientJSONError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpResp, err := c.postWithRetry(ctx, method, body, false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	var rawResp struct {
		JSONRPC string              `json:"jsonrpc"`
		ID      any                 `json:"id"`
		Result  json.RawMessage     `json:"result,omitempty"`
		Error   *types.JSONRPCError `json:"error,omitempty"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&rawResp); err != nil {
		c.logger.Error("failed to decode response", zap.Error(err))
		return NewA2AClientJSONError(fmt.Sprintf("failed to decode response: %v", err))
	}

	if rawResp.Error != nil {
		c.logger.Error("received A2A error response",
			zap.String("error_message", rawResp.Error.Message),
			zap.Int("error_code", rawResp.Error.Code))
		return rawResp.Error
	}

	if httpResp.StatusCode != http.StatusOK {
		return NewA2AClientHTTPError(httpResp.StatusCode, "unexpected status code")
	}

	if len(rawResp.Result) > 0 && out != nil {
		if err := json.Unmarshal(rawResp.Result, out); err != nil {
			return NewA2AClientJSONError(fmt.Sprintf("failed to decode result: %v", err))
		}
	}

	c.logger.Debug("request completed successfully", zap.String("method", method))
	return nil
}

// doStreamingRequest performs an SSE call, forwarding decoded frames to
// eventChan until the server closes the stream or ctx is cancelled
func (c *Client) doStreamingRequest(ctx context.Context, method string, params any, eventChan chan<- types.SendTaskStreamingResponse) error {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return NewA2AClientJSONError(fmt.Sprintf("failed to marshal params: %v", err))
	}

	req := types.JSONRPCRequest{
		JSONRPC: types.JSONRPCVersion,
		ID:      uuid.New().String(),
		Method:  method,
		Params:  paramsBytes,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return NewA2AClientJSONError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpResp, err := c.postWithRetry(ctx, method, body, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	contentType := httpResp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		// Error responses come back as a plain JSON-RPC envelope
		var errResp types.JSONRPCResponse
		if decodeErr := json.NewDecoder(httpResp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != nil {
			return errResp.Error
		}
		return NewA2AClientHTTPError(httpResp.StatusCode, fmt.Sprintf("unexpected content type: %s", contentType))
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	eventCount := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			c.logger.Debug("streaming context cancelled", zap.Int("events_received", eventCount))
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "" || data == "[DONE]" {
			continue
		}

		var event types.SendTaskStreamingResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Error("failed to decode streaming event", zap.Error(err), zap.Int("events_received", eventCount))
			return NewA2AClientJSONError(fmt.Sprintf("failed to decode event: %v", err))
		}

		eventCount++
		c.logger.Debug("received streaming event", zap.Int("event_number", eventCount))

		select {
		case eventChan <- event:
		case <-ctx.Done():
			c.logger.Debug("streaming context cancelled while sending event", zap.Int("events_received", eventCount))
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Error("streaming read failed", zap.Error(err), zap.Int("events_received", eventCount))
		return NewA2AClientHTTPError(0, fmt.Sprintf("streaming read failed: %v", err))
	}

	c.logger.Debug("streaming completed", zap.Int("events_received", eventCount))
	return nil
}

// postWithRetry sends the request body, retrying transport failures. Each
// attempt rebuilds the request so the body can be re-read.
func (c *Client) postWithRetry(ctx context.Context, method string, body []byte, streaming bool) (*http.Response, error) {
	var httpResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				zap.String("method", method),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.config.MaxRetries+1))

			select {
			case <-ctx.Done():
				c.logger.Debug("request context cancelled during retry delay")
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, NewA2AClientHTTPError(0, fmt.Sprintf("failed to create request: %v", err))
		}

		c.setHeaders(httpReq)
		if streaming {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		doClient := c.httpClient
		if streaming {
			doClient = c.streamingClient
		}
		httpResp, err = doClient.Do(httpReq)
		if err == nil {
			c.logger.Debug("request successful",
				zap.String("method", method),
				zap.Int("attempt", attempt+1),
				zap.Int("status_code", httpResp.StatusCode))
			return httpResp, nil
		}

		lastErr = err
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	c.logger.Error("all retry attempts exhausted",
		zap.String("method", method),
		zap.Int("attempts", c.config.MaxRetries+1),
		zap.Error(lastErr))
	return nil, NewA2AClientHTTPError(0, fmt.Sprintf("failed to send request after %d attempts: %v", c.config.MaxRetries+1, lastErr))
}

// setHeaders sets the common headers for HTTP requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
}

// SetHTTPClient allows customizing the HTTP client
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
	c.config.HTTPClient = client
	c.streamingClient = streamingClientFor(client)
}

// SetTimeout sets the timeout for HTTP requests
func (c *Client) SetTimeout(timeout time.Duration) {
	c.config.Timeout = timeout
	if c.httpClient != nil {
		c.httpClient.Timeout = timeout
	}
}

// GetBaseURL returns the base URL of the client
func (c *Client) GetBaseURL() string {
	return c.config.BaseURL
}

// SetHeader sets a custom header for all requests
func (c *Client) SetHeader(key, value string) {
	if c.config.Headers == nil {
		c.config.Headers = make(map[string]string)
	}
	c.config.Headers[key] = value
}

// RemoveHeader removes a custom header
func (c *Client) RemoveHeader(key string) {
	if c.config.Headers != nil {
		delete(c.config.Headers, key)
	}
}

// GetConfig returns a copy of the client configuration
func (c *Client) GetConfig() Config {
	config := *c.config
	if c.config.Headers != nil {
		config.Headers = make(map[string]string)
		for k, v := range c.config.Headers {
			config.Headers[k] = v
		}
	}
	return config
}

// SetMaxRetries sets the maximum number of retry attempts
func (c *Client) SetMaxRetries(maxRetries int) {
	c.config.MaxRetries = maxRetries
}

// SetRetryDelay sets the delay between retry attempts
func (c *Client) SetRetryDelay(delay time.Duration) {
	c.config.RetryDelay = delay
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
	c.config.Logger = logger
}

// GetLogger returns the current logger
func (c *Client) GetLogger() *zap.Logger {
	return c.logger
}
