package pdf

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProcessRunner runs an invocation to completion. The Supervisor is the
// production implementation; tests substitute counting fakes.
type ProcessRunner interface {
	Run(inv *Invocation) (*ProcessOutput, error)
}

// ProcessOutput is what a closed process left behind.
type ProcessOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// informationalStderr matches Ghostscript chatter that is not an error.
var informationalStderr = regexp.MustCompile(`(?i)^\s*(page \d+|processing pages|gpl ghostscript|artifex ghostscript|copyright|loading |substituting font|\**\s*warning)`)

const (
	maxCapturedOutput = 64 * 1024
	maxStderrInError  = 2048
)

// Supervisor spawns the external tool and owns it until its streams close.
type Supervisor struct {
	platform Platform
	logger   *zap.Logger
	metrics  *Metrics
	grace    time.Duration
}

func NewSupervisor(platform Platform, logger *zap.Logger, metrics *Metrics) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		platform: platform,
		logger:   logger,
		metrics:  metrics,
		grace:    TerminateGracePeriod,
	}
}

// Run starts the process and returns once it has exited and both of its
// output streams have been drained, which is the earliest point where its file
// handles are known to be released. If the timeout fires first the process is
// terminated and ErrInvocationTimedOut is returned immediately.
func (s *Supervisor) Run(inv *Invocation) (*ProcessOutput, error) {
	start := time.Now()
	logger := s.logger.With(zap.String("executable", inv.Executable))

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, s.spawnFailed(inv, logger, start, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return nil, s.spawnFailed(inv, logger, start, err)
	}

	cmd := exec.Command(inv.Executable, inv.Args...)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeFiles(stdoutR, stdoutW, stderrR, stderrW)
		return nil, s.spawnFailed(inv, logger, start, err)
	}

	// The child holds its own copies of the write ends; ours must go so that
	// EOF on the read ends means every writer is gone.
	closeFiles(stdoutW, stderrW)
	inv.transition(StateSpawned, logger)
	logger.Debug("process spawned", zap.Int("pid", cmd.Process.Pid), zap.Duration("timeout", inv.Timeout))

	stdout := newStreamCollector(func(line string) {
		logger.Debug("tool stdout", zap.String("line", line))
	})
	stderr := newStreamCollector(func(line string) {
		if informationalStderr.MatchString(line) {
			logger.Info("tool output", zap.String("line", line))
		}
	})

	var streams sync.WaitGroup
	streams.Add(2)
	go drain(&streams, stdoutR, stdout)
	go drain(&streams, stderrR, stderr)

	exited := make(chan int, 1)
	go func() {
		code := -1
		if state, err := cmd.Process.Wait(); err == nil {
			code = state.ExitCode()
		}
		exited <- code
	}()

	closed := make(chan int, 1)
	go func() {
		code := <-exited
		inv.markExited(code, logger)
		streams.Wait()
		closed <- code
	}()

	timer := time.NewTimer(inv.Timeout)
	defer timer.Stop()

	select {
	case code := <-closed:
		timer.Stop()
		inv.transition(StateClosed, logger)

		out := &ProcessOutput{
			ExitCode: code,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}

		if code != 0 {
			s.metrics.observeRun(KindInvocationFailed.String(), out.Duration)
			logger.Warn("process exited with error",
				zap.Int("exit_code", code),
				zap.Duration("duration", out.Duration))

			ce := newCompressionError(KindInvocationFailed, "run "+inv.Executable, ErrInvocationFailed)
			ce.ExitCode = code
			ce.Stderr = tail(strings.TrimSpace(out.Stderr), maxStderrInError)
			return out, ce
		}

		s.metrics.observeRun("ok", out.Duration)
		logger.Debug("process closed", zap.Duration("duration", out.Duration))
		return out, nil

	case <-timer.C:
		inv.transition(StateTimedOut, logger)
		elapsed := time.Since(start)
		s.metrics.observeRun(KindInvocationTimedOut.String(), elapsed)
		logger.Warn("process timed out, terminating",
			zap.Duration("timeout", inv.Timeout),
			zap.Int("pid", cmd.Process.Pid))

		if err := s.platform.Terminate(cmd.Process); err != nil {
			logger.Warn("failed to signal process", zap.Error(err))
		}
		go s.escalate(cmd.Process, closed, logger)

		return nil, newCompressionError(KindInvocationTimedOut, "run "+inv.Executable,
			&timeoutError{timeout: inv.Timeout})
	}
}

func (s *Supervisor) spawnFailed(inv *Invocation, logger *zap.Logger, start time.Time, err error) error {
	inv.markFailed(err.Error(), logger)
	s.metrics.observeRun(KindSpawnError.String(), time.Since(start))
	logger.Warn("failed to spawn process", zap.Error(err))
	return newCompressionError(KindSpawnError, "spawn "+inv.Executable, err)
}

// escalate kills a terminated process that has not closed within the grace period.
func (s *Supervisor) escalate(p *os.Process, closed <-chan int, logger *zap.Logger) {
	select {
	case <-closed:
		logger.Debug("timed out process closed after termination")
	case <-time.After(s.grace):
		if err := p.Kill(); err != nil {
			logger.Debug("kill after grace period failed", zap.Error(err))
			return
		}
		logger.Warn("killed process after grace period", zap.Int("pid", p.Pid))
	}
}

type timeoutError struct {
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return "process did not finish within " + e.timeout.String()
}

func drain(wg *sync.WaitGroup, r *os.File, c *streamCollector) {
	defer wg.Done()
	defer r.Close()
	_, _ = io.Copy(c, r)
	c.flush()
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// streamCollector accumulates a process stream and hands complete lines to onLine.
type streamCollector struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	partial []byte
	onLine  func(string)
}

func newStreamCollector(onLine func(string)) *streamCollector {
	return &streamCollector{onLine: onLine}
}

func (c *streamCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := maxCapturedOutput - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}

	c.partial = append(c.partial, p...)
	for {
		i := bytes.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		c.emit(c.partial[:i])
		c.partial = c.partial[i+1:]
	}
	if len(c.partial) > maxCapturedOutput {
		c.emit(c.partial)
		c.partial = nil
	}

	return len(p), nil
}

func (c *streamCollector) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.partial) > 0 {
		c.emit(c.partial)
		c.partial = nil
	}
}

func (c *streamCollector) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text != "" && c.onLine != nil {
		c.onLine(text)
	}
}

func (c *streamCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
