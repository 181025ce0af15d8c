package pdf

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures of the external tool pipeline. Every kind is
// recovered at the CompressPDF boundary and turned into a fallback result.
type ErrorKind int

const (
	// KindToolUnavailable means neither the primary nor the alternate
	// executable answered the version probe.
	KindToolUnavailable ErrorKind = iota + 1

	// KindInvocationTimedOut means the process did not close before its
	// timeout and was sent a termination signal.
	KindInvocationTimedOut

	// KindInvocationFailed means the process closed with a non-zero exit code.
	KindInvocationFailed

	// KindSpawnError means the OS refused to start the process.
	KindSpawnError
)

func (k ErrorKind) String() string {
	switch k {
	case KindToolUnavailable:
		return "tool_unavailable"
	case KindInvocationTimedOut:
		return "timeout"
	case KindInvocationFailed:
		return "failed"
	case KindSpawnError:
		return "spawn_error"
	default:
		return "unknown"
	}
}

var (
	ErrToolUnavailable    = errors.New("tool not available")
	ErrInvocationTimedOut = errors.New("invocation timed out")
	ErrInvocationFailed   = errors.New("invocation failed")
	ErrSpawn              = errors.New("failed to spawn process")
)

var kindSentinels = map[ErrorKind]error{
	KindToolUnavailable:    ErrToolUnavailable,
	KindInvocationTimedOut: ErrInvocationTimedOut,
	KindInvocationFailed:   ErrInvocationFailed,
	KindSpawnError:         ErrSpawn,
}

type CompressionError struct {
	Kind      ErrorKind
	Op        string
	Err       error
	ExitCode  int
	Stderr    string
	Timestamp time.Time
}

func newCompressionError(kind ErrorKind, op string, err error) *CompressionError {
	return &CompressionError{
		Kind:      kind,
		Op:        op,
		Err:       err,
		ExitCode:  -1,
		Timestamp: time.Now(),
	}
}

func (e *CompressionError) Error() string {
	switch e.Kind {
	case KindInvocationFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("[%v] %s: exit code %d: %s", e.Kind, e.Op, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("[%v] %s: exit code %d", e.Kind, e.Op, e.ExitCode)
	default:
		return fmt.Sprintf("[%v] %s: %v", e.Kind, e.Op, e.Err)
	}
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind so callers can use errors.Is.
func (e *CompressionError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// AsCompressionError extracts a CompressionError from err.
func AsCompressionError(err error) *CompressionError {
	var ce *CompressionError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
