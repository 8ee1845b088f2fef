package domain

// Confidence is an extraction confidence score clamped to [0, 1].
type Confidence float64

// Default thresholds used across the mapping pipeline.
const (
	LowConfidenceThreshold  = 0.4
	HighConfidenceThreshold = 0.8
)

// NewConfidence clamps v into [0, 1] and returns it as a Confidence.
func NewConfidence(v float64) Confidence {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return Confidence(v)
}

// Value returns the score as a plain float64.
func (c Confidence) Value() float64 {
	return float64(c)
}

// IsLow reports whether the score is at or below the given threshold.
func (c Confidence) IsLow(threshold float64) bool {
	return float64(c) <= threshold
}

// IsHigh reports whether the score is at or above the given threshold.
func (c Confidence) IsHigh(threshold float64) bool {
	return float64(c) >= threshold
}

// BucketIndex returns the histogram bucket this score falls into for the
// given ascending bounds.
func (c Confidence) BucketIndex(bounds ...float64) int {
	if len(bounds) == 0 {
		bounds = []float64{0.2, 0.4, 0.6, 0.8, 1.0}
	}
	for i, bound := range bounds {
		if float64(c) <= bound {
			return i
		}
	}
	return len(bounds)
}

// MeanConfidence returns the arithmetic mean of the samples, or 0 when empty.
func MeanConfidence(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
