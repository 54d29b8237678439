/*
Copyright © 2021 the BioMosaic authors.
This file is part of BioMosaic.

BioMosaic is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

BioMosaic is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with BioMosaic.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package errprop propagates independent random errors through
// arithmetic. All functions assume that the errors of their inputs are
// uncorrelated; no covariance terms are included.
//
// Masked values are represented by NaN. Any operation with a masked
// input returns a masked result. Division by zero also returns a masked
// result.
package errprop

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Value is a quantity and its one-standard-deviation uncertainty.
type Value struct {
	Mean, SD float64
}

// Masked is a value with no data.
var Masked = Value{Mean: math.NaN(), SD: math.NaN()}

// Exact returns a value with no uncertainty.
func Exact(v float64) Value { return Value{Mean: v} }

// IsMasked returns whether v has no data.
func (v Value) IsMasked() bool { return math.IsNaN(v.Mean) || math.IsNaN(v.SD) }

// Quadrature returns the square root of the sum of the squares of e,
// which is the error of a sum of quantities with independent errors e.
func Quadrature(e ...float64) float64 {
	if len(e) == 0 {
		return 0
	}
	return floats.Norm(e, 2)
}

// QuadratureMean returns the weighted root-mean-square of e:
// sqrt(Σ wᵢ eᵢ² / Σ wᵢ). If w is nil all weights are equal.
// It returns NaN if there are no values or the weights sum to zero.
func QuadratureMean(e, w []float64) float64 {
	if len(e) == 0 {
		return math.NaN()
	}
	var sum, wsum float64
	for i, v := range e {
		wi := 1.
		if w != nil {
			wi = w[i]
		}
		sum += wi * v * v
		wsum += wi
	}
	if wsum == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / wsum)
}

// Relative returns the error of z = f(x₁, x₂, ...) for a product or
// quotient f, calculated with the relative error rule
// |z|·sqrt(Σ (eᵢ/xᵢ)²). A term with xᵢ = 0 contributes nothing if its
// error is also zero, and masks the result (NaN) otherwise.
func Relative(z float64, terms ...Value) float64 {
	var sum float64
	for _, t := range terms {
		if t.IsMasked() {
			return math.NaN()
		}
		if t.SD == 0 {
			continue
		}
		if t.Mean == 0 {
			return math.NaN()
		}
		r := t.SD / t.Mean
		sum += r * r
	}
	return math.Abs(z) * math.Sqrt(sum)
}

// Add returns a + b.
func Add(a, b Value) Value {
	if a.IsMasked() || b.IsMasked() {
		return Masked
	}
	return Value{Mean: a.Mean + b.Mean, SD: math.Hypot(a.SD, b.SD)}
}

// Sub returns a - b.
func Sub(a, b Value) Value {
	if a.IsMasked() || b.IsMasked() {
		return Masked
	}
	return Value{Mean: a.Mean - b.Mean, SD: math.Hypot(a.SD, b.SD)}
}

// Sum returns the sum of vs.
func Sum(vs ...Value) Value {
	var o Value
	e := make([]float64, len(vs))
	for i, v := range vs {
		if v.IsMasked() {
			return Masked
		}
		o.Mean += v.Mean
		e[i] = v.SD
	}
	o.SD = Quadrature(e...)
	return o
}

// Mul returns a × b. The error is calculated from the partial
// derivatives, sqrt((b·σa)² + (a·σb)²), which equals the relative
// error rule when neither input is zero and remains finite when
// one of them is.
func Mul(a, b Value) Value {
	if a.IsMasked() || b.IsMasked() {
		return Masked
	}
	return Value{Mean: a.Mean * b.Mean, SD: math.Hypot(b.Mean*a.SD, a.Mean*b.SD)}
}

// Product returns the product of vs, with the error calculated in the
// same way as Mul.
func Product(vs ...Value) Value {
	if len(vs) == 0 {
		return Exact(1)
	}
	z := 1.
	for _, v := range vs {
		if v.IsMasked() {
			return Masked
		}
		z *= v.Mean
	}
	e := make([]float64, len(vs))
	for i, v := range vs {
		// ∂z/∂xᵢ is the product of the other values.
		d := 1.
		for j, o := range vs {
			if j != i {
				d *= o.Mean
			}
		}
		e[i] = d * v.SD
	}
	return Value{Mean: z, SD: Quadrature(e...)}
}

// Div returns a / b. The result is masked if b is zero.
func Div(a, b Value) Value {
	if a.IsMasked() || b.IsMasked() || b.Mean == 0 {
		return Masked
	}
	z := a.Mean / b.Mean
	return Value{Mean: z, SD: math.Hypot(a.SD/b.Mean, z*b.SD/b.Mean)}
}

// Scale returns k × v for an exact constant k.
func Scale(v Value, k float64) Value {
	if v.IsMasked() {
		return Masked
	}
	return Value{Mean: v.Mean * k, SD: math.Abs(k) * v.SD}
}

// Exp returns e^v, with error e^v·σv.
func Exp(v Value) Value {
	if v.IsMasked() {
		return Masked
	}
	z := math.Exp(v.Mean)
	return Value{Mean: z, SD: z * v.SD}
}

// Weighted returns w·a + (1-w)·b for an exact weight w. Because a and
// b are usually derived from the same inputs their errors are combined
// linearly, as if fully correlated.
func Weighted(a, b Value, w float64) Value {
	if a.IsMasked() || b.IsMasked() {
		return Masked
	}
	return Value{
		Mean: w*a.Mean + (1-w)*b.Mean,
		SD:   math.Abs(w)*a.SD + math.Abs(1-w)*b.SD,
	}
}
