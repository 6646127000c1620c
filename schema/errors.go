package schema

import "errors"

var (
	// ErrInvalidArgument indicates a rejected spanning mode or size value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownAction indicates a bridge message with an unsupported action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrBridgeAttached indicates a message source is already attached to the context.
	ErrBridgeAttached = errors.New("bridge already attached")
	// ErrContextClosed indicates the browsing context has been shut down.
	ErrContextClosed = errors.New("context closed")
	// ErrInvalidContext indicates a malformed context identifier.
	ErrInvalidContext = errors.New("invalid context")
	// ErrContextNotFound indicates no live emulator exists for the context.
	ErrContextNotFound = errors.New("context not found")
)
