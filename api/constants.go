package api

const (
	// DefaultMaxFileSize is the upload limit when Config.MaxFileSize is unset (100MB)
	DefaultMaxFileSize = 100 * 1024 * 1024

	// MaxErrorHeaderLength truncates X-Compression-Error values
	MaxErrorHeaderLength = 200

	// RequestIDHeader carries the per-request correlation ID
	RequestIDHeader = "X-Request-ID"
)

// Result headers set on every compression response.
const (
	HeaderCompressed       = "X-Compressed"
	HeaderCompressionRatio = "X-Compression-Ratio"
	HeaderOriginalSize     = "X-Original-Size"
	HeaderCompressedSize   = "X-Compressed-Size"
	HeaderReason           = "X-Compression-Reason"
	HeaderError            = "X-Compression-Error"
)
