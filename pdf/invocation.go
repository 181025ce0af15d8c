package pdf

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InvocationBuilder produces Ghostscript argument vectors tuned to input size
// and host platform.
type InvocationBuilder struct {
	platform Platform
}

func NewInvocationBuilder(platform Platform) *InvocationBuilder {
	return &InvocationBuilder{platform: platform}
}

// Preset returns the -dPDFSETTINGS value used on this platform.
func (b *InvocationBuilder) Preset() string {
	return b.platform.Preset
}

// Resolution returns the image DPI for an input of the given size.
func (b *InvocationBuilder) Resolution(size int64) int {
	if size > LargeFileThreshold {
		return LargeFileImageResolution
	}
	return DefaultImageResolution
}

// Build returns the argv (without the executable) and the timeout for one
// invocation. Paths are separate elements and are never quoted.
func (b *InvocationBuilder) Build(inputPath, outputPath string, size int64) ([]string, time.Duration) {
	dpi := strconv.Itoa(b.Resolution(size))

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + b.platform.Preset,
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-dQUIET",
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dColorImageResolution=" + dpi,
		"-dGrayImageResolution=" + dpi,
		"-sOutputFile=" + outputPath,
		inputPath,
	}

	return args, CalculateTimeout(size)
}

// CalculateTimeout is 60s below 10MB, then 180s plus 30s for every further
// 10MB, capped at 300s.
func CalculateTimeout(size int64) time.Duration {
	if size < LargeFileThreshold {
		return SmallFileTimeout
	}

	steps := (size - LargeFileThreshold) / TimeoutStepSize
	timeout := LargeFileBaseTimeout + time.Duration(steps)*TimeoutStep
	if timeout > MaxInvocationTimeout {
		return MaxInvocationTimeout
	}
	return timeout
}

// InvocationState tracks one process through spawn, exit and stream close.
type InvocationState int

const (
	StatePending InvocationState = iota
	StateSpawned
	StateExited
	StateClosed
	StateTimedOut
	StateFailed
)

func (s InvocationState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSpawned:
		return "spawned"
	case StateExited:
		return "exited"
	case StateClosed:
		return "closed"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[InvocationState][]InvocationState{
	StatePending: {StateSpawned, StateFailed},
	StateSpawned: {StateExited, StateTimedOut, StateFailed},
	StateExited:  {StateClosed, StateTimedOut},
}

// Invocation is a single run of the external tool. Executable and Args are
// handed to the OS verbatim.
type Invocation struct {
	Executable string
	Args       []string
	Timeout    time.Duration

	mu       sync.Mutex
	state    InvocationState
	exitCode int
	reason   string
}

func NewInvocation(executable string, args []string, timeout time.Duration) *Invocation {
	return &Invocation{
		Executable: executable,
		Args:       args,
		Timeout:    timeout,
		exitCode:   -1,
	}
}

func (inv *Invocation) State() InvocationState {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// ExitCode is -1 until the process has exited.
func (inv *Invocation) ExitCode() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.exitCode
}

func (inv *Invocation) FailureReason() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.reason
}

func (inv *Invocation) transition(to InvocationState, logger *zap.Logger) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.transitionLocked(to, logger)
}

func (inv *Invocation) transitionLocked(to InvocationState, logger *zap.Logger) bool {
	for _, next := range allowedTransitions[inv.state] {
		if next == to {
			inv.state = to
			return true
		}
	}

	logger.Debug("ignored invocation state transition",
		zap.String("from", inv.state.String()),
		zap.String("to", to.String()),
		zap.String("executable", inv.Executable))
	return false
}

func (inv *Invocation) markExited(code int, logger *zap.Logger) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	// A timed out process still exits; keep its code for diagnostics.
	inv.exitCode = code
	return inv.transitionLocked(StateExited, logger)
}

func (inv *Invocation) markFailed(reason string, logger *zap.Logger) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.transitionLocked(StateFailed, logger) {
		inv.reason = reason
	}
}

func (inv *Invocation) String() string {
	return fmt.Sprintf("%s (%d args, timeout %v)", inv.Executable, len(inv.Args), inv.Timeout)
}
