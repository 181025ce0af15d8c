package pdf

import "math"

// NeedsCompression reports whether an input of the given size is worth
// sending to the external tool. A non-positive threshold selects the default.
func NeedsCompression(size, threshold int64) bool {
	if threshold <= 0 {
		threshold = DefaultSizeThreshold
	}
	return size >= threshold
}

// Effectiveness is the verdict of comparing output size against input size.
type Effectiveness struct {
	Ratio      float64
	BytesSaved int64
	Effective  bool
}

// Evaluate computes the percentage saved, rounded to two decimals and floored at 0.
func Evaluate(originalSize, outputSize int64) Effectiveness {
	if originalSize <= 0 {
		return Effectiveness{}
	}

	ratio := float64(originalSize-outputSize) / float64(originalSize) * 100
	ratio = math.Round(ratio*100) / 100
	if ratio < 0 {
		ratio = 0
	}

	saved := originalSize - outputSize
	if saved < 0 {
		saved = 0
	}

	return Effectiveness{
		Ratio:      ratio,
		BytesSaved: saved,
		Effective:  ratio >= MinEffectiveRatio,
	}
}
