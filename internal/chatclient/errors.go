package chatclient

import "fmt"

// ErrorKind buckets client failures so callers can choose the right
// user-facing copy and retry behaviour.
type ErrorKind string

const (
	// ErrConnection covers dial failures and dropped sockets. Retryable.
	ErrConnection ErrorKind = "connection"
	// ErrPermission covers denied device or resource access. Not retryable.
	ErrPermission ErrorKind = "permission"
	// ErrTransfer covers upload and download failures. Retryable.
	ErrTransfer ErrorKind = "transfer"
	// ErrValidation covers rejected input. Fix the input, then retry.
	ErrValidation ErrorKind = "validation"
)

// ChatError wraps a failure with its kind and the operation that hit it.
type ChatError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ChatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// Retryable reports whether the operation may be retried unchanged.
func (e *ChatError) Retryable() bool {
	return e.Kind == ErrConnection || e.Kind == ErrTransfer
}
