package predict

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestFitLineEmpty(t *testing.T) {
	fit := FitLine(nil)
	if fit != (Fit{}) {
		t.Errorf("expected zero fit, got %+v", fit)
	}
}

func TestFitLineSinglePoint(t *testing.T) {
	fit := FitLine([]Point{{X: 0, Y: 40}})
	if fit.Slope != 0 {
		t.Errorf("expected slope 0, got %v", fit.Slope)
	}
	if fit.Intercept != 40 {
		t.Errorf("expected intercept 40, got %v", fit.Intercept)
	}
	if fit.RSquared != 0 {
		t.Errorf("expected r_squared 0, got %v", fit.RSquared)
	}
}

func TestFitLinePerfectDecrease(t *testing.T) {
	fit := FitLine([]Point{{0, 50}, {1, 45}, {2, 40}, {3, 35}})
	if !approx(fit.Slope, -5) {
		t.Errorf("expected slope -5, got %v", fit.Slope)
	}
	if !approx(fit.Intercept, 50) {
		t.Errorf("expected intercept 50, got %v", fit.Intercept)
	}
	if !approx(fit.RSquared, 1) {
		t.Errorf("expected r_squared 1, got %v", fit.RSquared)
	}
}

func TestFitLineUnsortedX(t *testing.T) {
	sorted := FitLine([]Point{{0, 50}, {1, 45}, {2, 40}, {3, 35}})
	shuffled := FitLine([]Point{{2, 40}, {0, 50}, {3, 35}, {1, 45}})
	if !approx(sorted.Slope, shuffled.Slope) || !approx(sorted.Intercept, shuffled.Intercept) || !approx(sorted.RSquared, shuffled.RSquared) {
		t.Errorf("fit depends on point order: %+v vs %+v", sorted, shuffled)
	}
}

func TestFitLineIdenticalX(t *testing.T) {
	fit := FitLine([]Point{{5, 10}, {5, 20}, {5, 30}})
	if fit.Slope != 0 {
		t.Errorf("expected slope 0 for zero x variance, got %v", fit.Slope)
	}
	if !approx(fit.Intercept, 20) {
		t.Errorf("expected intercept at mean y (20), got %v", fit.Intercept)
	}
	if fit.RSquared != 0 {
		t.Errorf("expected r_squared 0, got %v", fit.RSquared)
	}
}

func TestFitLineFlatSeriesHasZeroRSquared(t *testing.T) {
	fit := FitLine([]Point{{0, 50}, {1, 50}, {2, 50}, {3, 50}})
	if fit.Slope != 0 {
		t.Errorf("expected slope 0, got %v", fit.Slope)
	}
	if fit.Intercept != 50 {
		t.Errorf("expected intercept 50, got %v", fit.Intercept)
	}
	// A flat series fits perfectly but is reported as r_squared 0.
	if fit.RSquared != 0 {
		t.Errorf("expected r_squared 0 for flat series, got %v", fit.RSquared)
	}
}

func TestFitLineNoisy(t *testing.T) {
	fit := FitLine([]Point{{0, 1}, {1, 3}, {2, 2}, {3, 4}})
	if !approx(fit.Slope, 0.8) {
		t.Errorf("expected slope 0.8, got %v", fit.Slope)
	}
	if !approx(fit.Intercept, 1.3) {
		t.Errorf("expected intercept 1.3, got %v", fit.Intercept)
	}
	if !approx(fit.RSquared, 0.64) {
		t.Errorf("expected r_squared 0.64, got %v", fit.RSquared)
	}
}

func TestFitLineRSquaredWithinBounds(t *testing.T) {
	tests := [][]Point{
		{{0, 0}, {1, 100}, {2, 0}, {3, 100}},
		{{0, 99.9}, {0.001, 0.1}},
		{{0, 1e-9}, {1, 2e-9}, {2, 1e-9}},
		{{10, 30}, {20, 30.0000001}, {30, 29.9999999}},
	}
	for i, pts := range tests {
		fit := FitLine(pts)
		if fit.RSquared < 0 || fit.RSquared > 1 {
			t.Errorf("case %d: r_squared %v outside [0,1]", i, fit.RSquared)
		}
	}
}

func TestFitAt(t *testing.T) {
	fit := Fit{Slope: -5, Intercept: 50}
	if got := fit.At(27); got != -85 {
		t.Errorf("expected -85, got %v", got)
	}
}
