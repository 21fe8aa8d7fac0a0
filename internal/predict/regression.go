package predict

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitLine computes the least-squares line through points.
//
// It never fails. With fewer than two points the slope is zero and the
// intercept is the lone Y (or zero). When every X is identical the slope is
// zero. When every Y is identical RSquared is reported as zero rather than
// one, so a flat series does not earn full confidence.
func FitLine(points []Point) Fit {
	n := len(points)
	if n < 2 {
		if n == 1 {
			return Fit{Intercept: points[0].Y}
		}
		return Fit{}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}

	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)

	var ssXY, ssXX, ssYY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		ssXY += dx * dy
		ssXX += dx * dx
		ssYY += dy * dy
	}

	var slope float64
	if ssXX != 0 {
		slope = ssXY / ssXX
	}
	intercept := meanY - slope*meanX

	var rSquared float64
	if ssYY != 0 {
		rSquared = stat.RSquared(xs, ys, nil, intercept, slope)
	}

	return Fit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  clamp(rSquared, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
