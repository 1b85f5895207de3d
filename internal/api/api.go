package api

import "time"

type APIResponse[T any] struct {
	Data      T             `json:"data,omitempty"`
	Error     ErrorResponse `json:"error"`
	Status    int           `json:"status,omitempty"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
}

type ErrorResponse struct {
	Message          string `json:"message"`
	DetailedResponse string `json:"details,omitempty"`
}

const (
	msgRequestParseFailed   = "Failed to parse request"
	msgStrategyNotFound     = "Strategy not found"
	msgStrategyInvalid      = "Invalid strategy document"
	msgStrategyCreateFailed = "Failed to create strategy"
	msgStrategyListFailed   = "Failed to list strategies"
	msgStrategyConflict     = "Strategy already exists for this creator"
	msgPurchaseListFailed   = "Failed to list purchases"
	msgInternalError        = "An internal error occurred"
)

func NewErrorResponseWithMessage(message string) APIResponse[interface{}] {
	return APIResponse[interface{}]{
		Error: ErrorResponse{
			Message: message,
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
}

func NewErrorResponseWithDetails(message, details string) APIResponse[interface{}] {
	return APIResponse[interface{}]{
		Error: ErrorResponse{
			Message:          message,
			DetailedResponse: details,
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
}

func NewSuccessResponse[T any](code int, data T) APIResponse[T] {
	return APIResponse[T]{
		Status:    code,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
	}
}
