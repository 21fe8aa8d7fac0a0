package predict

import (
	"fmt"
	"math"
)

// DefaultTargetMoisture is used when a plant has no target configured.
const DefaultTargetMoisture = 50.0

// targetMargin is how far below target the projection may fall before
// Advise adds a warning.
const targetMargin = 20.0

// Advise turns a prediction into a one-line message for the dashboard.
// A targetMoisture <= 0 is treated as unset.
func Advise(r Result, targetMoisture float64) string {
	if targetMoisture <= 0 {
		targetMoisture = DefaultTargetMoisture
	}

	var msg string
	switch r.Trend {
	case TrendDecreasing:
		switch {
		case r.DaysUntilWatering != nil && *r.DaysUntilWatering <= 1:
			msg = "Water soon! Moisture is dropping and will reach low levels within 24 hours."
		case r.DaysUntilWatering != nil && *r.DaysUntilWatering <= 3:
			msg = fmt.Sprintf("Consider watering in %d days.", int(math.Ceil(*r.DaysUntilWatering)))
		default:
			msg = "Moisture is slowly decreasing but still at healthy levels."
		}
	case TrendIncreasing:
		msg = "Moisture is increasing - plant was recently watered or absorbing water."
	default:
		msg = "Moisture levels are stable."
	}

	if r.PredictedMoisture24h < targetMoisture-targetMargin {
		msg += " Warning: Predicted moisture will be below target range."
	}
	return msg
}
