package predict

import (
	"math"
	"sort"
)

// Predict projects soil moisture hoursAhead past the newest reading.
//
// Readings are sorted by timestamp before use (ties keep their input order)
// so callers may pass them in any order. A nil moisture value counts as 0%
// in the fit and as the current value. An empty slice yields a zeroed,
// stable result. Rounding is applied only to the returned fields.
func Predict(readings []Reading, hoursAhead float64) Result {
	if len(readings) == 0 {
		return Result{Trend: TrendStable}
	}

	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := toPoints(sorted)
	last := points[len(points)-1]
	current := valueOrZero(sorted[len(sorted)-1].SoilMoisture)

	fit := FitLine(points)
	projected := clamp(fit.At(last.X+hoursAhead), 0, 100)

	result := Result{
		CurrentMoisture:      current,
		PredictedMoisture24h: roundTo(projected, 1),
		Slope:                roundTo(fit.Slope, 3),
		Intercept:            roundTo(fit.Intercept, 1),
		Trend:                ClassifyTrend(fit.Slope),
		Confidence:           roundTo(confidence(fit.RSquared, len(points)), 2),
		DataPoints:           len(points),
	}
	if days, ok := daysUntilWatering(fit.Slope, current); ok {
		rounded := roundTo(days, 1)
		result.DaysUntilWatering = &rounded
	}
	return result
}

// ClassifyTrend maps a slope in %/hour onto a Trend.
func ClassifyTrend(slope float64) Trend {
	switch {
	case slope > TrendThreshold:
		return TrendIncreasing
	case slope < -TrendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// toPoints expects readings sorted oldest first.
func toPoints(sorted []Reading) []Point {
	first := sorted[0].Timestamp
	points := make([]Point, len(sorted))
	for i, r := range sorted {
		points[i] = Point{
			X: r.Timestamp.Sub(first).Hours(),
			Y: valueOrZero(r.SoilMoisture),
		}
	}
	return points
}

// daysUntilWatering solves the fitted slope for the watering threshold.
// It reports false when moisture is above the threshold and not falling.
func daysUntilWatering(slope, current float64) (float64, bool) {
	switch {
	case slope < 0 && current > WateringThreshold:
		hours := (WateringThreshold - current) / slope
		return math.Max(0, hours/24), true
	case current <= WateringThreshold:
		return 0, true
	default:
		return 0, false
	}
}

// confidence blends fit quality with sample size. It is a heuristic score,
// not a statistical interval.
func confidence(rSquared float64, n int) float64 {
	volume := math.Min(1, float64(n)/confidenceSaturation)
	return rSquared*confidenceFitWeight + volume*confidenceVolumeWeight
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

// roundTo rounds half up to the given number of decimal places, so -0.05
// becomes 0.0 and 0.05 becomes 0.1.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Floor(v*scale+0.5) / scale
}
