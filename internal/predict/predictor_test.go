package predict

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// hourly builds one reading per hour starting at base.
func hourly(values ...float64) []Reading {
	readings := make([]Reading, len(values))
	for i, v := range values {
		readings[i] = Reading{
			SoilMoisture: Moisture(v),
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
		}
	}
	return readings
}

func daysEqual(got *float64, want float64) bool {
	return got != nil && *got == want
}

func TestPredictEmpty(t *testing.T) {
	for _, readings := range [][]Reading{nil, {}} {
		r := Predict(readings, DefaultHorizon)
		want := Result{Trend: TrendStable}
		if !reflect.DeepEqual(r, want) {
			t.Errorf("expected %+v, got %+v", want, r)
		}
	}
}

func TestPredictSingleReading(t *testing.T) {
	r := Predict(hourly(40), DefaultHorizon)

	if r.PredictedMoisture24h != 40 {
		t.Errorf("expected predicted 40, got %v", r.PredictedMoisture24h)
	}
	if r.Slope != 0 || r.Intercept != 40 {
		t.Errorf("expected slope 0 intercept 40, got %v / %v", r.Slope, r.Intercept)
	}
	if r.Trend != TrendStable {
		t.Errorf("expected stable, got %s", r.Trend)
	}
	if r.DaysUntilWatering != nil {
		t.Errorf("expected no watering forecast, got %v", *r.DaysUntilWatering)
	}
	if r.CurrentMoisture != 40 {
		t.Errorf("expected current 40, got %v", r.CurrentMoisture)
	}
	if r.DataPoints != 1 {
		t.Errorf("expected 1 data point, got %d", r.DataPoints)
	}
	if r.Confidence != 0 {
		t.Errorf("expected confidence 0, got %v", r.Confidence)
	}
}

func TestPredictPerfectDecrease(t *testing.T) {
	r := Predict(hourly(50, 45, 40, 35), DefaultHorizon)

	if r.Slope != -5 {
		t.Errorf("expected slope -5, got %v", r.Slope)
	}
	if r.Intercept != 50 {
		t.Errorf("expected intercept 50, got %v", r.Intercept)
	}
	// 50 - 5*(3+24) = -85, clamped
	if r.PredictedMoisture24h != 0 {
		t.Errorf("expected predicted clamped to 0, got %v", r.PredictedMoisture24h)
	}
	if r.Trend != TrendDecreasing {
		t.Errorf("expected decreasing, got %s", r.Trend)
	}
	if r.CurrentMoisture != 35 {
		t.Errorf("expected current 35, got %v", r.CurrentMoisture)
	}
	// (30-35)/-5 = 1 hour = 0.04 days
	if !daysEqual(r.DaysUntilWatering, 0) {
		t.Errorf("expected days_until_watering 0.0, got %v", r.DaysUntilWatering)
	}
	if r.Confidence != 0.71 {
		t.Errorf("expected confidence 0.71, got %v", r.Confidence)
	}
	if r.DataPoints != 4 {
		t.Errorf("expected 4 data points, got %d", r.DataPoints)
	}
}

func TestPredictWateringNow(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		trend  Trend
	}{
		{"rising", []float64{10, 15, 20, 25}, TrendIncreasing},
		{"falling", []float64{40, 35, 30, 25}, TrendDecreasing},
		{"flat", []float64{25, 25, 25}, TrendStable},
		{"at threshold", []float64{30, 30}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Predict(hourly(tt.values...), DefaultHorizon)
			if !daysEqual(r.DaysUntilWatering, 0) {
				t.Errorf("expected days_until_watering 0, got %v", r.DaysUntilWatering)
			}
			if r.Trend != tt.trend {
				t.Errorf("expected %s, got %s", tt.trend, r.Trend)
			}
		})
	}
}

func TestPredictFlatSeries(t *testing.T) {
	r := Predict(hourly(50, 50, 50, 50), DefaultHorizon)

	if r.Slope != 0 {
		t.Errorf("expected slope 0, got %v", r.Slope)
	}
	if r.Trend != TrendStable {
		t.Errorf("expected stable, got %s", r.Trend)
	}
	if r.DaysUntilWatering != nil {
		t.Errorf("expected no watering forecast, got %v", *r.DaysUntilWatering)
	}
	if r.PredictedMoisture24h != 50 {
		t.Errorf("expected predicted 50, got %v", r.PredictedMoisture24h)
	}
	// r_squared 0, volume 4/100*0.3 = 0.012
	if r.Confidence != 0.01 {
		t.Errorf("expected confidence 0.01, got %v", r.Confidence)
	}
}

func TestPredictSlowDecline(t *testing.T) {
	r := Predict(hourly(80, 79.5, 79, 78.5), DefaultHorizon)

	if r.Slope != -0.5 {
		t.Errorf("expected slope -0.5, got %v", r.Slope)
	}
	if r.Trend != TrendDecreasing {
		t.Errorf("expected decreasing, got %s", r.Trend)
	}
	// 80 - 0.5*27
	if r.PredictedMoisture24h != 66.5 {
		t.Errorf("expected predicted 66.5, got %v", r.PredictedMoisture24h)
	}
	// (30-78.5)/-0.5 = 97h = 4.04 days
	if !daysEqual(r.DaysUntilWatering, 4) {
		t.Errorf("expected 4.0 days, got %v", r.DaysUntilWatering)
	}
}

func TestPredictFractionalHours(t *testing.T) {
	readings := []Reading{
		{SoilMoisture: Moisture(60), Timestamp: base},
		{SoilMoisture: Moisture(59), Timestamp: base.Add(30 * time.Minute)},
		{SoilMoisture: Moisture(58), Timestamp: base.Add(60 * time.Minute)},
	}
	r := Predict(readings, DefaultHorizon)

	if r.Slope != -2 {
		t.Errorf("expected slope -2, got %v", r.Slope)
	}
	// 60 - 2*(1+24)
	if r.PredictedMoisture24h != 10 {
		t.Errorf("expected predicted 10, got %v", r.PredictedMoisture24h)
	}
	// (30-58)/-2 = 14h = 0.58 days
	if !daysEqual(r.DaysUntilWatering, 0.6) {
		t.Errorf("expected 0.6 days, got %v", r.DaysUntilWatering)
	}
	if r.Confidence != 0.71 {
		t.Errorf("expected confidence 0.71, got %v", r.Confidence)
	}
}

func TestPredictCustomHorizon(t *testing.T) {
	readings := hourly(50, 45, 40, 35)
	tests := []struct {
		hours float64
		want  float64
	}{
		{0, 35},
		{1, 30},
		{6, 5},
		{7, 0},
	}
	for _, tt := range tests {
		r := Predict(readings, tt.hours)
		if r.PredictedMoisture24h != tt.want {
			t.Errorf("hoursAhead=%v: expected %v, got %v", tt.hours, tt.want, r.PredictedMoisture24h)
		}
	}
}

func TestPredictSortsByTimestamp(t *testing.T) {
	readings := hourly(50, 45, 40, 35)
	reversed := make([]Reading, len(readings))
	for i, r := range readings {
		reversed[len(readings)-1-i] = r
	}

	r := Predict(reversed, DefaultHorizon)
	if r.CurrentMoisture != 35 {
		t.Errorf("expected current moisture from newest reading (35), got %v", r.CurrentMoisture)
	}
	if r.Slope != -5 {
		t.Errorf("expected slope -5, got %v", r.Slope)
	}
}

func TestPredictDoesNotMutateInput(t *testing.T) {
	readings := []Reading{
		{SoilMoisture: Moisture(35), Timestamp: base.Add(3 * time.Hour)},
		{SoilMoisture: Moisture(50), Timestamp: base},
	}
	Predict(readings, DefaultHorizon)
	if *readings[0].SoilMoisture != 35 || *readings[1].SoilMoisture != 50 {
		t.Error("Predict reordered the caller's slice")
	}
}

func TestPredictOrderIndependence(t *testing.T) {
	readings := hourly(62, 61.2, 60.9, 59.4, 58.8, 58.1, 57.5, 55.9)
	want := Predict(readings, DefaultHorizon)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]Reading, len(readings))
		copy(shuffled, readings)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := Predict(shuffled, DefaultHorizon)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestPredictDeterministic(t *testing.T) {
	readings := hourly(70, 68, 69, 65, 64, 61)
	first := Predict(readings, 12)
	second := Predict(readings, 12)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestPredictBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(150)
		readings := make([]Reading, n)
		for j := range readings {
			readings[j] = Reading{
				SoilMoisture: Moisture(rng.Float64() * 100),
				Timestamp:    base.Add(time.Duration(rng.Int63n(int64(7 * 24 * time.Hour)))),
			}
		}
		hours := rng.Float64() * 96

		r := Predict(readings, hours)
		if r.PredictedMoisture24h < 0 || r.PredictedMoisture24h > 100 {
			t.Fatalf("case %d: predicted %v outside [0,100]", i, r.PredictedMoisture24h)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("case %d: confidence %v outside [0,1]", i, r.Confidence)
		}
		if r.DaysUntilWatering != nil && *r.DaysUntilWatering < 0 {
			t.Fatalf("case %d: negative days_until_watering %v", i, *r.DaysUntilWatering)
		}
		if r.DataPoints != n {
			t.Fatalf("case %d: expected %d data points, got %d", i, n, r.DataPoints)
		}
	}
}

func TestPredictClampsHigh(t *testing.T) {
	r := Predict(hourly(10, 60, 99), DefaultHorizon)
	if r.PredictedMoisture24h != 100 {
		t.Errorf("expected predicted clamped to 100, got %v", r.PredictedMoisture24h)
	}
	if r.Trend != TrendIncreasing {
		t.Errorf("expected increasing, got %s", r.Trend)
	}
	if r.DaysUntilWatering != nil {
		t.Errorf("expected no watering forecast, got %v", *r.DaysUntilWatering)
	}
}

func TestPredictNullMoistureCountsAsZero(t *testing.T) {
	readings := hourly(60, 0, 60)
	readings[1].SoilMoisture = nil

	r := Predict(readings, DefaultHorizon)
	// points (0,60) (1,0) (2,60): flat fit through the mean
	if r.Slope != 0 {
		t.Errorf("expected slope 0, got %v", r.Slope)
	}
	if r.Intercept != 40 {
		t.Errorf("expected intercept 40, got %v", r.Intercept)
	}
	if r.CurrentMoisture != 60 {
		t.Errorf("expected current 60, got %v", r.CurrentMoisture)
	}
}

func TestPredictNullCurrentMoisture(t *testing.T) {
	readings := hourly(60, 55)
	readings[1].SoilMoisture = nil

	r := Predict(readings, DefaultHorizon)
	if r.CurrentMoisture != 0 {
		t.Errorf("expected current 0 for null reading, got %v", r.CurrentMoisture)
	}
	if !daysEqual(r.DaysUntilWatering, 0) {
		t.Errorf("expected days_until_watering 0, got %v", r.DaysUntilWatering)
	}
}

func TestPredictConfidenceSaturates(t *testing.T) {
	values := make([]float64, 150)
	for i := range values {
		values[i] = 90 - 0.2*float64(i)
	}
	r := Predict(hourly(values...), DefaultHorizon)
	if r.Confidence != 1 {
		t.Errorf("expected confidence 1, got %v", r.Confidence)
	}
	if r.DataPoints != 150 {
		t.Errorf("expected 150 data points, got %d", r.DataPoints)
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		slope float64
		want  Trend
	}{
		{0, TrendStable},
		{0.1, TrendStable},
		{-0.1, TrendStable},
		{0.1001, TrendIncreasing},
		{-0.1001, TrendDecreasing},
		{12, TrendIncreasing},
		{-12, TrendDecreasing},
	}
	for _, tt := range tests {
		if got := ClassifyTrend(tt.slope); got != tt.want {
			t.Errorf("ClassifyTrend(%v): expected %s, got %s", tt.slope, tt.want, got)
		}
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{1.23456, 3, 1.235},
		{0.05, 1, 0.1},
		{-0.05, 1, 0},
		{2.25, 1, 2.3},
		{-2.25, 1, -2.2},
		{0.712, 2, 0.71},
		{42, 1, 42},
	}
	for _, tt := range tests {
		got := roundTo(tt.v, tt.places)
		if got != tt.want {
			t.Errorf("roundTo(%v, %d): expected %v, got %v", tt.v, tt.places, tt.want, got)
		}
	}
}

func TestRoundToNeverNegativeZero(t *testing.T) {
	got := roundTo(-0.0004, 3)
	if got != 0 || math.Signbit(got) {
		t.Errorf("expected +0, got %v (signbit %v)", got, math.Signbit(got))
	}
}
