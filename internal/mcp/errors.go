// Package mcp exposes page search and reindexing as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	pserrors "github.com/Aman-CERP/pagesearch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexUnavailable indicates the index or content source cannot
	// be read.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeReindexBusy indicates another reindex holds the job lock.
	ErrCodeReindexBusy = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeGroupNotFound indicates an unknown permission group.
	ErrCodeGroupNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	if se, ok := pserrors.As(err); ok {
		return mapSearchError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapSearchError(se *pserrors.SearchError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case pserrors.ErrCodeReindexInProgress, pserrors.ErrCodeIndexLocked:
		return &MCPError{Code: ErrCodeReindexBusy, Message: message}
	case pserrors.ErrCodeGroupNotFound:
		return &MCPError{Code: ErrCodeGroupNotFound, Message: message}
	}

	switch se.Category {
	case pserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case pserrors.CategoryIO, pserrors.CategoryCollaborator:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
