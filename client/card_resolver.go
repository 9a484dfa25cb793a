package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// AgentCardResolver fetches agent cards from the well-known discovery path.
// Base URLs with or without a trailing slash resolve to the same endpoint.
type AgentCardResolver struct {
	baseURL    string
	cardPath   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAgentCardResolver creates a resolver for the given agent base URL
func NewAgentCardResolver(baseURL string) *AgentCardResolver {
	return &AgentCardResolver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cardPath: types.AgentCardWellKnownPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zap.NewNop(),
	}
}

// SetCardPath overrides the discovery path. The default is the well-known path.
func (r *AgentCardResolver) SetCardPath(path string) {
	r.cardPath = path
}

// SetHTTPClient allows customizing the HTTP client
func (r *AgentCardResolver) SetHTTPClient(client *http.Client) {
	if client != nil {
		r.httpClient = client
	}
}

// SetLogger sets the logger for the resolver
func (r *AgentCardResolver) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// GetAgentCard fetches and decodes the agent card
func (r *AgentCardResolver) GetAgentCard(ctx context.Context) (*types.AgentCard, error) {
	url := r.baseURL + "/" + strings.TrimLeft(r.cardPath, "/")

	r.logger.Debug("resolving agent card", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewA2AClientHTTPError(0, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, NewA2AClientHTTPError(0, fmt.Sprintf("failed to fetch agent card: %v", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewA2AClientHTTPError(resp.StatusCode, string(body))
	}

	var card types.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, NewA2AClientJSONError(fmt.Sprintf("failed to decode agent card: %v", err))
	}

	r.logger.Debug("agent card resolved",
		zap.String("name", card.Name),
		zap.String("agent_url", card.URL))

	return &card, nil
}
