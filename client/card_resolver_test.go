package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/a2a-go/client"
	"github.com/agentmesh/a2a-go/types"
)

func cardServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != types.AgentCardWellKnownPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(types.AgentCard{
			Name:    "remote-agent",
			URL:     "https://agents.example.com",
			Version: "1.2.3",
			Capabilities: types.AgentCapabilities{
				Streaming: true,
			},
		}))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestAgentCardResolver_GetAgentCard(t *testing.T) {
	ts := cardServer(t)

	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "base url without trailing slash", baseURL: ts.URL},
		{name: "base url with trailing slash", baseURL: ts.URL + "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := client.NewAgentCardResolver(tt.baseURL)
			card, err := resolver.GetAgentCard(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "remote-agent", card.Name)
			assert.Equal(t, "1.2.3", card.Version)
			assert.True(t, card.Capabilities.Streaming)
		})
	}
}

func TestAgentCardResolver_NotFound(t *testing.T) {
	ts := cardServer(t)

	resolver := client.NewAgentCardResolver(ts.URL)
	resolver.SetCardPath("/nope.json")

	_, err := resolver.GetAgentCard(context.Background())
	require.Error(t, err)

	var httpErr *client.A2AClientHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestAgentCardResolver_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	resolver := client.NewAgentCardResolver(ts.URL)
	_, err := resolver.GetAgentCard(context.Background())
	require.Error(t, err)

	var jsonErr *client.A2AClientJSONError
	assert.ErrorAs(t, err, &jsonErr)
}

func TestClient_GetAgentCard(t *testing.T) {
	ts := cardServer(t)

	c := client.NewClient(ts.URL)
	card, err := c.GetAgentCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remote-agent", card.Name)
}
