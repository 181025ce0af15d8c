package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultWorkDirPermissions for the private working directory
const DefaultWorkDirPermissions = 0755

// Options configure a Compressor.
type Options struct {
	// WorkDir is the private directory for working files
	WorkDir string

	// SizeThreshold is the minimum input size that gets compressed
	SizeThreshold int64

	// ToolPath replaces the platform Ghostscript executable name
	ToolPath string

	// ValidateOutput parses compressed output before accepting it
	ValidateOutput bool

	// OrphanAge is the minimum age of working files taken by SweepOrphans
	OrphanAge time.Duration
}

// DefaultWorkDir is used when Options.WorkDir is empty.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), "pdfcompress")
}

// Option overrides a collaborator of the Compressor.
type Option func(*Compressor)

func WithPlatform(p Platform) Option {
	return func(c *Compressor) { c.platform = p }
}

func WithRunner(r ProcessRunner) Option {
	return func(c *Compressor) { c.runner = r }
}

func WithFileSystem(fsys FileSystem) Option {
	return func(c *Compressor) { c.fs = fsys }
}

func WithClock(clock Clock) Option {
	return func(c *Compressor) { c.clock = clock }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Compressor) { c.metrics = m }
}

// WithTimeoutFunc replaces CalculateTimeout.
func WithTimeoutFunc(fn func(size int64) time.Duration) Option {
	return func(c *Compressor) { c.timeoutFor = fn }
}

// Compressor runs the size gate, tool probe, invocation, effectiveness gate
// and output validation for one document at a time. It is safe for
// concurrent use; requests only share the cached probe result.
type Compressor struct {
	opts       Options
	platform   Platform
	fs         FileSystem
	clock      Clock
	runner     ProcessRunner
	metrics    *Metrics
	timeoutFor func(size int64) time.Duration
	logger     *zap.Logger

	probe     *ToolProbe
	builder   *InvocationBuilder
	reclaimer *Reclaimer
}

func NewCompressor(opts Options, logger *zap.Logger, options ...Option) (*Compressor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = DefaultWorkDir()
	}
	if opts.SizeThreshold <= 0 {
		opts.SizeThreshold = DefaultSizeThreshold
	}
	if opts.ToolPath != "" && !filepath.IsAbs(opts.ToolPath) {
		return nil, fmt.Errorf("tool path must be absolute: %s", opts.ToolPath)
	}

	c := &Compressor{
		opts:       opts,
		platform:   CurrentPlatform(),
		timeoutFor: CalculateTimeout,
		logger:     logger.Named("compressor"),
	}
	for _, option := range options {
		option(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	if c.fs == nil {
		c.fs = NewLocalFileSystem(c.platform)
	}
	if c.clock == nil {
		c.clock = SystemClock()
	}
	if c.runner == nil {
		c.runner = NewSupervisor(c.platform, logger.Named("supervisor"), c.metrics)
	}

	c.probe = NewToolProbe(c.platform, opts.ToolPath, c.runner, logger.Named("probe"))
	c.builder = NewInvocationBuilder(c.platform)
	c.reclaimer = NewReclaimer(c.fs, c.clock, c.platform, logger.Named("reclaimer"), c.metrics)
	if opts.OrphanAge > 0 {
		c.reclaimer.orphanAge = opts.OrphanAge
	}

	return c, nil
}

// WorkDir returns the directory holding working files.
func (c *Compressor) WorkDir() string {
	return c.opts.WorkDir
}

// ToolStatus runs the availability probe if it has not run yet.
func (c *Compressor) ToolStatus() ToolStatus {
	return c.probe.Probe()
}

// SweepOrphans reclaims working files left behind by earlier runs.
func (c *Compressor) SweepOrphans() (*SweepReport, error) {
	return c.reclaimer.SweepOrphans(c.opts.WorkDir)
}

// Close waits for scheduled working-file reclaims to finish.
func (c *Compressor) Close() {
	c.reclaimer.Wait()
}

// CompressPDF compresses buffer with the external tool. Tool problems
// (unavailable, timeout, non-zero exit, spawn failure, invalid output) and
// policy skips yield a successful result carrying the original buffer. Only
// I/O errors on the working files are returned as errors.
func (c *Compressor) CompressPDF(buffer []byte, originalName string) (*CompressionResult, error) {
	start := c.clock.Now()
	size := int64(len(buffer))
	logger := c.logger.With(zap.String("name", originalName), zap.Int64("size", size))

	if !NeedsCompression(size, c.opts.SizeThreshold) {
		logger.Debug("below compression threshold", zap.Int64("threshold", c.opts.SizeThreshold))
		c.metrics.observeRequest("skipped_below_threshold", c.clock.Now().Sub(start))
		return skippedResult(buffer, originalName, ReasonBelowThreshold), nil
	}

	status := c.probe.Probe()
	if !status.Available {
		err := status.unavailableError()
		logger.Warn("skipping compression, ghostscript unavailable", zap.Error(err))
		c.metrics.observeRequest(KindToolUnavailable.String(), c.clock.Now().Sub(start))
		return fallbackResult(buffer, originalName, "Ghostscript not available: "+status.Reason), nil
	}

	if err := c.fs.MkdirAll(c.opts.WorkDir, DefaultWorkDirPermissions); err != nil {
		c.metrics.observeRequest("error", c.clock.Now().Sub(start))
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	pair := NewWorkingFilePair(c.opts.WorkDir, c.clock.Now())
	logger = logger.With(zap.String("id", pair.ID))

	if err := c.fs.WriteFile(pair.Input, buffer, 0600); err != nil {
		c.reclaimer.Schedule(pair)
		c.metrics.observeRequest("error", c.clock.Now().Sub(start))
		return nil, fmt.Errorf("failed to write working file: %w", err)
	}

	args, timeout := c.builder.Build(pair.Input, pair.Output, size)
	if c.timeoutFor != nil {
		timeout = c.timeoutFor(size)
	}
	inv := NewInvocation(status.Executable, args, timeout)

	logger.Info("compressing document",
		zap.String("preset", c.builder.Preset()),
		zap.Int("resolution", c.builder.Resolution(size)),
		zap.Duration("timeout", timeout))

	_, runErr := c.runner.Run(inv)
	if runErr != nil {
		// Ownership of the working files passes to the reclaimer here, on
		// close, timeout or spawn failure alike.
		c.reclaimer.Schedule(pair)

		outcome := "error"
		if ce := AsCompressionError(runErr); ce != nil {
			outcome = ce.Kind.String()
		}
		logger.Warn("compression failed, returning original", zap.Error(runErr))
		c.metrics.observeRequest(outcome, c.clock.Now().Sub(start))
		return fallbackResult(buffer, originalName, "compression failed: "+runErr.Error()), nil
	}

	output, readErr := c.fs.ReadFile(pair.Output)
	c.reclaimer.Schedule(pair)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			logger.Warn("tool produced no output, returning original")
			c.metrics.observeRequest(KindInvocationFailed.String(), c.clock.Now().Sub(start))
			return fallbackResult(buffer, originalName, "compression failed: tool produced no output file"), nil
		}
		c.metrics.observeRequest("error", c.clock.Now().Sub(start))
		return nil, fmt.Errorf("failed to read compressed output: %w", readErr)
	}

	outSize := int64(len(output))
	eff := Evaluate(size, outSize)
	if !eff.Effective {
		logger.Info("compression ineffective, returning original",
			zap.Int64("output_size", outSize),
			zap.Float64("ratio", eff.Ratio))
		c.metrics.observeRequest("skipped_ineffective", c.clock.Now().Sub(start))
		return skippedResult(buffer, originalName, ReasonIneffective), nil
	}

	if c.opts.ValidateOutput {
		if err := ValidateOutput(output); err != nil {
			logger.Warn("compressed output failed validation, returning original", zap.Error(err))
			c.metrics.observeRequest("invalid_output", c.clock.Now().Sub(start))
			return fallbackResult(buffer, originalName, "compressed output failed validation: "+err.Error()), nil
		}
	}

	c.metrics.observeSaved(eff.BytesSaved)
	c.metrics.observeRequest("compressed", c.clock.Now().Sub(start))
	logger.Info("document compressed",
		zap.Int64("output_size", outSize),
		zap.Float64("ratio", eff.Ratio),
		zap.Duration("elapsed", c.clock.Now().Sub(start)))

	return &CompressionResult{
		Success:          true,
		Compressed:       true,
		Buffer:           output,
		OriginalName:     originalName,
		OriginalSize:     size,
		CompressedSize:   outSize,
		CompressionRatio: eff.Ratio,
		Metadata: &CompressionMetadata{
			Preset:       c.builder.Preset(),
			Tool:         ToolName,
			Executable:   status.Executable,
			Resolution:   c.builder.Resolution(size),
			BytesSaved:   eff.BytesSaved,
			CompressedAt: c.clock.Now(),
		},
	}, nil
}
