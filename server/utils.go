package server

import "github.com/agentmesh/a2a-go/types"

// AreModalitiesCompatible reports whether the client can accept what the
// server produces. An empty or nil list on either side means no constraint;
// otherwise at least one mode must be shared.
func AreModalitiesCompatible(serverOutputModes, clientOutputModes []string) bool {
	if len(clientOutputModes) == 0 {
		return true
	}
	if len(serverOutputModes) == 0 {
		return true
	}

	for _, mode := range serverOutputModes {
		for _, accepted := range clientOutputModes {
			if mode == accepted {
				return true
			}
		}
	}
	return false
}

// NewIncompatibleTypesError builds the error response for a modality mismatch
func NewIncompatibleTypesError(requestID any) *types.JSONRPCResponse {
	return types.NewErrorResponse(requestID, types.NewContentTypeNotSupportedError())
}

// NewNotImplementedError builds the error response for an unimplemented operation
func NewNotImplementedError(requestID any) *types.JSONRPCResponse {
	return types.NewErrorResponse(requestID, types.NewUnsupportedOperationError())
}
