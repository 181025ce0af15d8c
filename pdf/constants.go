package pdf

import "time"

const (
	// MiB is one mebibyte
	MiB = 1024 * 1024

	// DefaultSizeThreshold is the input size below which compression is skipped (5MB)
	DefaultSizeThreshold = 5 * MiB

	// LargeFileThreshold switches to lower raster resolution and longer timeouts (10MB)
	LargeFileThreshold = 10 * MiB

	// MinEffectiveRatio is the minimum percentage saving required to keep a compressed artifact
	MinEffectiveRatio = 10.0

	// DefaultImageResolution is the raster DPI used for regular inputs
	DefaultImageResolution = 120

	// LargeFileImageResolution is the raster DPI used above LargeFileThreshold
	LargeFileImageResolution = 100
)

// Invocation timeouts
const (
	SmallFileTimeout     = 60 * time.Second
	LargeFileBaseTimeout = 180 * time.Second
	TimeoutStep          = 30 * time.Second
	TimeoutStepSize      = 10 * MiB
	MaxInvocationTimeout = 300 * time.Second

	// ProbeTimeout bounds the `--version` availability check
	ProbeTimeout = 15 * time.Second

	// TerminateGracePeriod is how long a timed out process has to exit before it is killed
	TerminateGracePeriod = 5 * time.Second
)

// Reclaim policy
const (
	MaxReclaimAttempts   = 5
	SweepReclaimAttempts = 2
	MaxReclaimBackoff    = 8 * time.Second

	// OrphanAge is the minimum age of a working file before the startup sweep touches it
	OrphanAge = 5 * time.Minute

	// ShellDeleteTimeout bounds the last-resort shell delete
	ShellDeleteTimeout = 10 * time.Second
)

// Working file naming
const (
	InputFilePrefix    = "compress_input_"
	OutputFilePrefix   = "compress_output_"
	CleanupLaterPrefix = "cleanup_later_"
)

// Skip reasons
const (
	ReasonBelowThreshold = "below threshold"
	ReasonIneffective    = "ineffective"
)

// ToolName is reported in result metadata
const ToolName = "ghostscript"
