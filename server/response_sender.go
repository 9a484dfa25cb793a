package server

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// ResponseSender defines how to send JSON-RPC responses
type ResponseSender interface {
	// SendSuccess sends a JSON-RPC success response
	SendSuccess(c *gin.Context, id any, result any)

	// SendError sends a JSON-RPC error response
	SendError(c *gin.Context, id any, rpcErr *types.JSONRPCError)

	// SendResponse sends a prebuilt JSON-RPC response envelope
	SendResponse(c *gin.Context, resp *types.JSONRPCResponse)
}

// DefaultResponseSender implements the ResponseSender interface. Error
// responses go out with HTTP 400: transport status mirrors the JSON-RPC
// outcome so clients can fail fast without parsing the body.
type DefaultResponseSender struct {
	logger *zap.Logger
}

var _ ResponseSender = (*DefaultResponseSender)(nil)

// NewDefaultResponseSender creates a new default response sender
func NewDefaultResponseSender(logger *zap.Logger) *DefaultResponseSender {
	return &DefaultResponseSender{
		logger: logger,
	}
}

// SendSuccess sends a JSON-RPC success response
func (rs *DefaultResponseSender) SendSuccess(c *gin.Context, id any, result any) {
	c.JSON(http.StatusOK, types.NewSuccessResponse(id, result))
	rs.logger.Info("sending success response", zap.Any("id", id))
}

// SendError sends a JSON-RPC error response
func (rs *DefaultResponseSender) SendError(c *gin.Context, id any, rpcErr *types.JSONRPCError) {
	c.JSON(http.StatusBadRequest, types.NewErrorResponse(id, rpcErr))
	rs.logger.Error("sending error response",
		zap.Int("code", rpcErr.Code),
		zap.String("message", rpcErr.Message))
}

// SendResponse sends a prebuilt envelope, picking the HTTP status from its outcome
func (rs *DefaultResponseSender) SendResponse(c *gin.Context, resp *types.JSONRPCResponse) {
	if resp.Error != nil {
		c.JSON(http.StatusBadRequest, resp)
		rs.logger.Error("sending error response",
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message))
		return
	}
	c.JSON(http.StatusOK, resp)
	rs.logger.Info("sending success response", zap.Any("id", resp.ID))
}
