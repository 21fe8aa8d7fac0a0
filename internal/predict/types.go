// Package predict fits a linear trend to soil-moisture history and turns it
// into a short-range watering forecast.
// This package has NO I/O and no clock: every call is a pure function of
// the readings passed in, so callers may run predictions concurrently.
package predict

import "time"

// Trend is a coarse classification of the fitted slope.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Forecast policy constants.
const (
	// DefaultHorizon is how far ahead Predict projects, in hours.
	DefaultHorizon = 24.0

	// MinReadings is the history callers must have before asking for a
	// prediction. Predict itself accepts fewer.
	MinReadings = 2

	// TrendThreshold is the dead-band around zero slope, in %/hour.
	TrendThreshold = 0.1

	// WateringThreshold is the moisture floor, in percent, that the
	// days-until-watering estimate is solved against.
	WateringThreshold = 30.0

	confidenceFitWeight    = 0.7
	confidenceVolumeWeight = 0.3
	confidenceSaturation   = 100.0
)

// Reading is a single soil-moisture sample as supplied by the caller.
// A nil SoilMoisture means the sensor did not report a value.
type Reading struct {
	SoilMoisture *float64  `json:"soil_moisture"`
	Timestamp    time.Time `json:"timestamp"`
}

// Point is a regression input: X in hours since the first reading, Y in percent.
type Point struct {
	X float64
	Y float64
}

// Fit is an ordinary least-squares line. RSquared is always within [0, 1].
type Fit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// At evaluates the fitted line at x.
func (f Fit) At(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// Result is the forecast returned to clients. Field names are part of the
// HTTP API.
type Result struct {
	CurrentMoisture      float64  `json:"current_moisture"`
	PredictedMoisture24h float64  `json:"predicted_moisture_24h"`
	Slope                float64  `json:"slope"` // %/hour
	Intercept            float64  `json:"intercept"`
	Trend                Trend    `json:"trend"`
	DaysUntilWatering    *float64 `json:"days_until_watering"`
	Confidence           float64  `json:"confidence"`
	DataPoints           int      `json:"data_points"`
}

// Moisture returns a pointer to v, for building Readings.
func Moisture(v float64) *float64 {
	return &v
}
