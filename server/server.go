package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	gin "github.com/gin-gonic/gin"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	envconfig "github.com/sethvargo/go-envconfig"
	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/server/config"
	"github.com/agentmesh/a2a-go/server/middlewares"
	"github.com/agentmesh/a2a-go/server/otel"
	"github.com/agentmesh/a2a-go/types"
)

// A2AServer defines the interface for an A2A-compatible server
type A2AServer interface {
	// Start starts the A2A server on the configured port
	Start(ctx context.Context) error

	// Stop gracefully stops the A2A server
	Stop(ctx context.Context) error

	// GetAgentCard returns the card served on the well-known path
	GetAgentCard() types.AgentCard

	// SetAgentCard sets a custom agent card that overrides the default card generation
	SetAgentCard(agentCard types.AgentCard)

	// LoadAgentCardFromFile loads and sets an agent card from a JSON file
	LoadAgentCardFromFile(filePath string, overrides map[string]any) error

	// TaskManager returns the task manager handling the RPC methods
	TaskManager() TaskManager

	// Router returns the HTTP handler serving the protocol endpoints
	Router() http.Handler
}

// A2AServerImpl implements the A2A protocol endpoint: a single JSON-RPC POST
// route that answers unary methods with JSON and streaming methods with SSE,
// plus agent card discovery and a health probe.
type A2AServerImpl struct {
	cfg            *config.Config
	logger         *zap.Logger
	taskManager    TaskManager
	responseSender ResponseSender
	otel           otel.OpenTelemetry

	httpServer    *http.Server
	metricsServer *http.Server

	customAgentCard *types.AgentCard
}

var _ A2AServer = (*A2AServerImpl)(nil)

// NewA2AServer creates an A2A server around the given task manager
func NewA2AServer(cfg *config.Config, logger *zap.Logger, telemetry otel.OpenTelemetry, taskManager TaskManager) *A2AServerImpl {
	return &A2AServerImpl{
		cfg:            cfg,
		logger:         logger,
		taskManager:    taskManager,
		responseSender: NewDefaultResponseSender(logger),
		otel:           telemetry,
	}
}

// NewDefaultA2AServer creates a fully wired server from environment
// configuration: task store per STORAGE_*, a DefaultTaskManager without
// handlers (install them before starting), optional telemetry.
func NewDefaultA2AServer(cfg *config.Config) *A2AServerImpl {
	finalCfg, err := config.LoadWithLookuper(context.Background(), cfg, envconfig.OsLookuper())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if finalCfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	store, err := NewTaskStore(ctx, finalCfg.StorageConfig, logger)
	if err != nil {
		logger.Warn("failed to create configured task store, falling back to in-memory",
			zap.String("provider", finalCfg.StorageConfig.Provider),
			zap.Error(err))
		store = NewInMemoryTaskStore(logger)
	}

	registry := NewSubscriberRegistry(finalCfg.StreamingConfig.QueueCapacity, logger)
	base := NewInMemoryTaskManager(store, registry, logger)
	manager := NewDefaultTaskManager(base, nil, logger)
	manager.SetPushNotificationsEnabled(finalCfg.CapabilitiesConfig.PushNotifications)
	if finalCfg.CapabilitiesConfig.PushNotifications {
		manager.SetPushNotificationSender(NewHTTPPushNotificationSender(logger))
	}

	var telemetryInstance otel.OpenTelemetry
	if finalCfg.TelemetryConfig.Enable {
		telemetryInstance, err = otel.NewOpenTelemetry(finalCfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize telemetry", zap.Error(err))
		}
		metricsAddr := finalCfg.TelemetryConfig.MetricsConfig.Host + ":" + finalCfg.TelemetryConfig.MetricsConfig.Port
		logger.Info("telemetry enabled, metrics will be available", zap.String("metrics_url", metricsAddr+"/metrics"))
	}

	srv := NewA2AServer(finalCfg, logger, telemetryInstance, manager)

	if finalCfg.AgentCardFilePath != "" {
		if err := srv.LoadAgentCardFromFile(finalCfg.AgentCardFilePath, nil); err != nil {
			logger.Warn("failed to load agent card file, serving the generated card",
				zap.String("file_path", finalCfg.AgentCardFilePath),
				zap.Error(err))
		}
	}

	return srv
}

// TaskManager returns the task manager handling the RPC methods
func (s *A2AServerImpl) TaskManager() TaskManager {
	return s.taskManager
}

// SetAgentCard sets a custom agent card that overrides the default card generation
func (s *A2AServerImpl) SetAgentCard(agentCard types.AgentCard) {
	s.customAgentCard = &agentCard
}

// GetAgentCard returns the card served on the well-known path. Without a
// custom card one is assembled from configuration.
func (s *A2AServerImpl) GetAgentCard() types.AgentCard {
	if s.customAgentCard != nil {
		return *s.customAgentCard
	}

	card := types.AgentCard{
		Name:    s.cfg.AgentName,
		URL:     s.cfg.AgentURL,
		Version: s.cfg.AgentVersion,
		Capabilities: types.AgentCapabilities{
			Streaming:              s.cfg.CapabilitiesConfig.Streaming,
			PushNotifications:      s.cfg.CapabilitiesConfig.PushNotifications,
			StateTransitionHistory: s.cfg.CapabilitiesConfig.StateTransitionHistory,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills:             []types.AgentSkill{},
	}
	if s.cfg.AgentDescription != "" {
		description := s.cfg.AgentDescription
		card.Description = &description
	}
	return card
}

// LoadAgentCardFromFile loads and sets an agent card from a JSON file.
// The optional overrides map allows dynamic replacement of JSON attribute values.
func (s *A2AServerImpl) LoadAgentCardFromFile(filePath string, overrides map[string]any) error {
	if filePath == "" {
		return nil
	}

	s.logger.Info("loading agent card from file", zap.String("file_path", filePath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read agent card file: %w", err)
	}

	var rawData map[string]any
	if err := json.Unmarshal(data, &rawData); err != nil {
		return fmt.Errorf("failed to parse agent card JSON: %w", err)
	}

	for key, value := range overrides {
		rawData[key] = value
	}

	modifiedData, err := json.Marshal(rawData)
	if err != nil {
		return fmt.Errorf("failed to marshal modified agent card data: %w", err)
	}

	var agentCard types.AgentCard
	if err := json.Unmarshal(modifiedData, &agentCard); err != nil {
		return fmt.Errorf("failed to parse modified agent card JSON: %w", err)
	}

	s.logger.Info("loaded agent card from file",
		zap.String("name", agentCard.Name),
		zap.String("version", agentCard.Version))
	s.customAgentCard = &agentCard
	return nil
}

// Router builds the HTTP handler serving the protocol endpoints
func (s *A2AServerImpl) Router() http.Handler {
	return s.setupRouter(s.cfg)
}

// setupRouter configures the HTTP router with the A2A endpoints
func (s *A2AServerImpl) setupRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.LoggingMiddleware(cfg.ServerConfig.DisableHealthcheckLog))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET(types.AgentCardWellKnownPath, s.handleAgentCard)

	endpointHandlers := make([]gin.HandlerFunc, 0, 3)

	if cfg.TelemetryConfig.Enable && s.otel != nil {
		telemetryMw, err := middlewares.NewTelemetryMiddleware(*cfg, s.otel, s.logger)
		if err != nil {
			s.logger.Error("failed to create telemetry middleware", zap.Error(err))
		} else {
			endpointHandlers = append(endpointHandlers, telemetryMw.Middleware())
		}
	}

	if cfg.AuthConfig.Enable {
		oidcAuthenticator, err := middlewares.NewOIDCAuthenticatorMiddleware(s.logger, *cfg)
		if err != nil {
			s.logger.Error("failed to create OIDC authenticator", zap.Error(err))
			return r
		}
		endpointHandlers = append(endpointHandlers, oidcAuthenticator.Middleware())
	}

	endpointHandlers = append(endpointHandlers, s.handleA2ARequest)
	r.POST(cfg.ServerConfig.Endpoint, endpointHandlers...)

	return r
}

// Start starts the A2A server
func (s *A2AServerImpl) Start(ctx context.Context) error {
	router := s.setupRouter(s.cfg)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.ServerConfig.Port),
		Handler:      router,
		ReadTimeout:  s.cfg.ServerConfig.ReadTimeout,
		WriteTimeout: s.cfg.ServerConfig.WriteTimeout,
		IdleTimeout:  s.cfg.ServerConfig.IdleTimeout,
	}

	s.logger.Info("starting A2A server",
		zap.String("port", s.cfg.ServerConfig.Port),
		zap.String("endpoint", s.cfg.ServerConfig.Endpoint),
		zap.String("agent_name", s.cfg.AgentName),
		zap.String("agent_version", s.cfg.AgentVersion))

	if s.cfg.TelemetryConfig.Enable && s.otel != nil {
		metricsRouter := gin.New()
		metricsRouter.Use(gin.Recovery())
		metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

		metricsAddr := s.cfg.TelemetryConfig.MetricsConfig.Host + ":" + s.cfg.TelemetryConfig.MetricsConfig.Port
		// Assigned before the goroutine starts so Stop sees the server.
		s.metricsServer = &http.Server{
			Addr:         metricsAddr,
			Handler:      metricsRouter,
			ReadTimeout:  s.cfg.TelemetryConfig.MetricsConfig.ReadTimeout,
			WriteTimeout: s.cfg.TelemetryConfig.MetricsConfig.WriteTimeout,
			IdleTimeout:  s.cfg.TelemetryConfig.MetricsConfig.IdleTimeout,
		}

		go func() {
			s.logger.Info("starting metrics server", zap.String("addr", metricsAddr))
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if s.cfg.ServerConfig.TLSConfig.Enable {
		return s.httpServer.ListenAndServeTLS(s.cfg.ServerConfig.TLSConfig.CertPath, s.cfg.ServerConfig.TLSConfig.KeyPath)
	}

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the A2A server
func (s *A2AServerImpl) Stop(ctx context.Context) error {
	s.logger.Info("stopping A2A server")

	var err error

	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping HTTP server", zap.Error(shutdownErr))
			err = shutdownErr
		}
	}

	if s.metricsServer != nil {
		if shutdownErr := s.metricsServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping metrics server", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	if s.otel != nil {
		if shutdownErr := s.otel.ShutDown(ctx); shutdownErr != nil {
			s.logger.Error("error shutting down telemetry", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	return err
}

// handleAgentCard serves the discovery document
func (s *A2AServerImpl) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.GetAgentCard())
}

// handleA2ARequest decodes one JSON-RPC request and dispatches it. Unary
// methods answer with a JSON body, streaming methods switch the connection
// to SSE. Requests that fail decoding answer with the recovered request id,
// or null when the payload was not even an object.
func (s *A2AServerImpl) handleA2ARequest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.logger.Error("failed to read request body", zap.Error(err))
		s.responseSender.SendError(c, nil, types.NewInternalError(err.Error()))
		return
	}

	req, rpcErr := types.UnmarshalA2ARequest(body)
	if rpcErr != nil {
		s.logger.Error("failed to decode a2a request",
			zap.Int("code", rpcErr.Code),
			zap.Any("detail", rpcErr.Data))
		s.responseSender.SendError(c, types.RequestID(body), rpcErr)
		return
	}

	ctx := c.Request.Context()

	switch req := req.(type) {
	case *types.GetTaskRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		resp := s.taskManager.OnGetTask(ctx, req)
		s.respond(c, resp.ID, resp.Result, resp.Error)
	case *types.SendTaskRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		resp := s.taskManager.OnSendTask(ctx, req)
		s.respond(c, resp.ID, resp.Result, resp.Error)
	case *types.SendTaskStreamingRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		events, errResp := s.taskManager.OnSendTaskSubscribe(ctx, req)
		if errResp != nil {
			s.responseSender.SendResponse(c, errResp)
			return
		}
		s.streamEvents(c, events)
	case *types.CancelTaskRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		resp := s.taskManager.OnCancelTask(ctx, req)
		s.respond(c, resp.ID, resp.Result, resp.Error)
	case *types.SetTaskPushNotificationRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		resp := s.taskManager.OnSetTaskPushNotification(ctx, req)
		s.respond(c, resp.ID, resp.Result, resp.Error)
	case *types.GetTaskPushNotificationRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		resp := s.taskManager.OnGetTaskPushNotification(ctx, req)
		s.respond(c, resp.ID, resp.Result, resp.Error)
	case *types.TaskResubscriptionRequest:
		s.logger.Info("received a2a request", zap.String("method", req.Method), zap.Any("id", req.ID))
		events, errResp := s.taskManager.OnResubscribeToTask(ctx, req)
		if errResp != nil {
			s.responseSender.SendResponse(c, errResp)
			return
		}
		s.streamEvents(c, events)
	default:
		s.responseSender.SendError(c, types.RequestID(body), types.NewInvalidRequestError("unsupported request type"))
	}
}

// respond writes a unary outcome, avoiding a typed-nil result in the envelope
func (s *A2AServerImpl) respond(c *gin.Context, id any, result any, rpcErr *types.JSONRPCError) {
	if rpcErr != nil {
		s.responseSender.SendError(c, id, rpcErr)
		return
	}
	s.responseSender.SendSuccess(c, id, result)
}

// streamEvents writes the event channel to the client as SSE frames, one
// "data:" line per JSON-RPC envelope, flushed per event. The channel closes
// when the stream terminates; a client disconnect stops the drain early.
func (s *A2AServerImpl) streamEvents(c *gin.Context, events <-chan types.SendTaskStreamingResponse) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			s.logger.Debug("client disconnected from stream")
			return
		case frame, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				s.logger.Error("failed to marshal streaming frame", zap.Error(err))
				return
			}

			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
				s.logger.Error("failed to write streaming frame", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
	}
}
