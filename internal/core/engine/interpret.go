package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// Interpretation labels, highest first.
const (
	LabelVeryConfident   = "Sangat Yakin"
	LabelConfident       = "Yakin"
	LabelFairlyConfident = "Cukup Yakin"
	LabelLessConfident   = "Kurang Yakin"
	LabelNotConfident    = "Tidak Yakin"
)

// Lower bounds of each interpretation bucket.
const (
	BucketVeryConfident   = 0.9
	BucketConfident       = 0.7
	BucketFairlyConfident = 0.5
	BucketLessConfident   = 0.3
)

// CFPrecision is the number of decimal places kept on every cf_final.
const CFPrecision = 4

// Interpret maps a certainty factor onto its human-readable bucket.
func Interpret(cf float64) string {
	switch {
	case cf >= BucketVeryConfident:
		return LabelVeryConfident
	case cf >= BucketConfident:
		return LabelConfident
	case cf >= BucketFairlyConfident:
		return LabelFairlyConfident
	case cf >= BucketLessConfident:
		return LabelLessConfident
	default:
		return LabelNotConfident
	}
}

// Clamp limits v to the certainty factor range [-1,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// Normalize clamps cf and rounds it to CFPrecision places so bucket
// boundaries are not decided by float noise.
func Normalize(cf float64) float64 {
	return decimal.NewFromFloat(Clamp(cf)).Round(CFPrecision).InexactFloat64()
}
