package pdf

import "time"

// CompressionMetadata describes an accepted compression.
type CompressionMetadata struct {
	Preset       string    `json:"preset"`
	Tool         string    `json:"tool"`
	Executable   string    `json:"executable"`
	Resolution   int       `json:"resolution"`
	BytesSaved   int64     `json:"bytes_saved"`
	CompressedAt time.Time `json:"compressed_at"`
}

// CompressionResult is always usable: Buffer holds either the compressed
// document or the caller's original. Compressed implies CompressionRatio is
// at least MinEffectiveRatio.
type CompressionResult struct {
	Success          bool                 `json:"success"`
	Compressed       bool                 `json:"compressed"`
	Buffer           []byte               `json:"-"`
	OriginalName     string               `json:"original_name,omitempty"`
	OriginalSize     int64                `json:"original_size"`
	CompressedSize   int64                `json:"compressed_size"`
	CompressionRatio float64              `json:"compression_ratio"`
	Skipped          bool                 `json:"skipped,omitempty"`
	Reason           string               `json:"reason,omitempty"`
	Error            string               `json:"error,omitempty"`
	Metadata         *CompressionMetadata `json:"metadata,omitempty"`
}

func originalResult(buf []byte, name string) *CompressionResult {
	size := int64(len(buf))
	return &CompressionResult{
		Success:        true,
		Buffer:         buf,
		OriginalName:   name,
		OriginalSize:   size,
		CompressedSize: size,
	}
}

func skippedResult(buf []byte, name, reason string) *CompressionResult {
	r := originalResult(buf, name)
	r.Skipped = true
	r.Reason = reason
	return r
}

func fallbackResult(buf []byte, name, detail string) *CompressionResult {
	r := originalResult(buf, name)
	r.Error = detail
	return r
}
