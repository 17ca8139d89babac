package analytics

import (
	"fmt"
	"strings"
)

// Dimension is the single input varied by a sweep.
type Dimension int

const (
	Spot Dimension = iota + 1
	Volatility
	Time
)

func (d Dimension) String() string {
	switch d {
	case Spot:
		return "spot"
	case Volatility:
		return "volatility"
	case Time:
		return "time"
	}
	return fmt.Sprintf("Dimension(%d)", int(d))
}

func (d Dimension) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot", "s", "stock":
		return Spot, nil
	case "volatility", "vol", "sigma":
		return Volatility, nil
	case "time", "t", "expiry":
		return Time, nil
	}
	return 0, fmt.Errorf("%w: sweep dimension %q", ErrInvalidInput, s)
}

// Point is one grid point of a sweep. Err is set when that variant could not be priced;
// Price and Greeks are then zero.
type Point struct {
	X      float64 `json:"x"`
	Price  float64 `json:"price"`
	Greeks Greeks  `json:"greeks"`
	Err    error   `json:"-"`
}

// Sweep prices the contract once per grid value, replacing only the swept dimension.
// Results keep the grid order, and a bad grid value only fails its own point.
func Sweep(c Contract, vol float64, dim Dimension, grid []float64) []Point {
	points := make([]Point, len(grid))
	for i, x := range grid {
		variant, variantVol := c, vol
		switch dim {
		case Spot:
			variant = c.WithSpot(x)
		case Volatility:
			variantVol = x
		case Time:
			variant = c.WithTime(x)
		default:
			points[i] = Point{X: x, Err: fmt.Errorf("%w: sweep dimension %v", ErrInvalidInput, dim)}
			continue
		}

		p, err := Price(variant, variantVol)
		if err != nil {
			points[i] = Point{X: x, Err: err}
			continue
		}
		points[i] = Point{X: x, Price: p, Greeks: greeks(variant, variantVol)}
	}
	return points
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = stop
	return out
}

// SpotGrid spans lowFactor*spot to highFactor*spot, e.g. 0.5 and 1.5 for ±50%.
func SpotGrid(spot, lowFactor, highFactor float64, n int) []float64 {
	return Linspace(spot*lowFactor, spot*highFactor, n)
}

// TimeGrid runs from minTime up to timeToExpiry. When the contract is closer to expiry than
// minTime the grid collapses onto timeToExpiry.
func TimeGrid(minTime, timeToExpiry float64, n int) []float64 {
	if timeToExpiry < minTime {
		minTime = timeToExpiry
	}
	return Linspace(minTime, timeToExpiry, n)
}
