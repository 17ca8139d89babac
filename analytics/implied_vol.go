package analytics

import (
	"fmt"
	"math"
)

const (
	DefaultVolLower      = 1e-6
	DefaultVolUpper      = 5.0
	DefaultVolTolerance  = 1e-6
	DefaultMaxIterations = 100
)

// SolverOptions configure the implied volatility search. Zero fields take the defaults.
type SolverOptions struct {
	Lower         float64 // lowest volatility tried
	Upper         float64 // highest volatility tried
	Tolerance     float64 // accepted |model - market| in price units
	MaxIterations int
	// Seed is an optional first guess, typically historical volatility. When it lies inside
	// the bracket it is used to narrow the bracket before the search starts.
	Seed float64
}

func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Lower:         DefaultVolLower,
		Upper:         DefaultVolUpper,
		Tolerance:     DefaultVolTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

func (o SolverOptions) withDefaults() SolverOptions {
	d := DefaultSolverOptions()
	if o.Lower == 0 {
		o.Lower = d.Lower
	}
	if o.Upper == 0 {
		o.Upper = d.Upper
	}
	if o.Tolerance == 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = d.MaxIterations
	}
	return o
}

// ImpliedVolResult is the outcome of an implied volatility search.
type ImpliedVolResult struct {
	Volatility float64 `json:"volatility"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}

// ImpliedVolatility finds the volatility that reproduces marketPrice using the default options.
func ImpliedVolatility(c Contract, marketPrice float64) (ImpliedVolResult, error) {
	return ImpliedVolatilityWithOptions(c, marketPrice, SolverOptions{})
}

// ImpliedVolatilityWithOptions inverts Price over volatility with Brent's method.
//
// A price sitting on the lower no-arbitrage bound (zero for a deep out-of-the-money option)
// resolves to the lowest volatility of the bracket. A price outside the bounds, or on the upper
// bound, fails with ErrNoArbitrageViolation. A price that needs a volatility outside the bracket,
// or a search that runs out of iterations, fails with ErrNoConvergence.
func ImpliedVolatilityWithOptions(c Contract, marketPrice float64, opts SolverOptions) (ImpliedVolResult, error) {
	if err := c.Validate(); err != nil {
		return ImpliedVolResult{}, err
	}
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) || marketPrice < 0 {
		return ImpliedVolResult{}, fmt.Errorf("%w: market price must be a non-negative number, got %v", ErrInvalidInput, marketPrice)
	}
	opts = opts.withDefaults()
	if opts.Lower < 0 || opts.Upper <= opts.Lower || opts.Tolerance < 0 || opts.MaxIterations < 0 {
		return ImpliedVolResult{}, fmt.Errorf("%w: volatility bracket [%v, %v]", ErrInvalidInput, opts.Lower, opts.Upper)
	}

	tol := opts.Tolerance
	lowerBound, upperBound := Bounds(c)
	if marketPrice < lowerBound-tol || marketPrice > upperBound+tol {
		return ImpliedVolResult{}, fmt.Errorf("%w: price %v outside [%v, %v]", ErrNoArbitrageViolation, marketPrice, lowerBound, upperBound)
	}
	if marketPrice <= lowerBound+tol {
		return ImpliedVolResult{Volatility: opts.Lower, Converged: true}, nil
	}
	if marketPrice >= upperBound-tol {
		return ImpliedVolResult{}, fmt.Errorf("%w: price %v at upper bound %v", ErrNoArbitrageViolation, marketPrice, upperBound)
	}

	f := func(vol float64) float64 {
		return price(c, vol) - marketPrice
	}

	lo, hi := opts.Lower, opts.Upper
	flo, fhi := f(lo), f(hi)
	evaluations := 0
	if math.Abs(flo) < tol {
		return ImpliedVolResult{Volatility: lo, Converged: true}, nil
	}
	if math.Abs(fhi) < tol {
		return ImpliedVolResult{Volatility: hi, Converged: true}, nil
	}
	if sameSign(flo, fhi) {
		return ImpliedVolResult{}, fmt.Errorf("%w: no sign change on [%v, %v] for price %v", ErrNoConvergence, lo, hi, marketPrice)
	}

	if opts.Seed > lo && opts.Seed < hi {
		fs := f(opts.Seed)
		evaluations++
		if math.Abs(fs) < tol {
			return ImpliedVolResult{Volatility: opts.Seed, Converged: true, Iterations: evaluations}, nil
		}
		if sameSign(fs, flo) {
			lo, flo = opts.Seed, fs
		} else {
			hi, fhi = opts.Seed, fs
		}
	}

	vol, iterations, ok := brent(f, lo, hi, flo, fhi, tol, opts.MaxIterations)
	iterations += evaluations
	if !ok {
		return ImpliedVolResult{Volatility: vol, Iterations: iterations},
			fmt.Errorf("%w: %d iterations exhausted", ErrNoConvergence, iterations)
	}
	return ImpliedVolResult{Volatility: vol, Converged: true, Iterations: iterations}, nil
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// brent finds a root of f in [a, b] given f(a) and f(b) of opposite sign, combining bisection,
// secant and inverse quadratic interpolation. It stops when |f| < ftol or the bracket has
// shrunk to machine precision.
func brent(f func(float64) float64, a, b, fa, fb, ftol float64, maxIterations int) (float64, int, bool) {
	const eps = 2.220446049250313e-16

	c, fc := b, fb
	var d, e float64
	for iter := 1; iter <= maxIterations; iter++ {
		if sameSign(fb, fc) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2 * eps * math.Abs(b)
		xm := 0.5 * (c - b)
		if math.Abs(fb) < ftol || math.Abs(xm) <= tol1 || fb == 0 {
			return b, iter, true
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}
	return b, maxIterations, false
}
