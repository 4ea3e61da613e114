/*
Copyright © 2019 the PSCF authors.
This file is part of PSCF.

PSCF is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PSCF is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PSCF.  If not, see <http://www.gnu.org/licenses/>.
*/

package pscf

import (
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// DefaultSmoothSigma is the default standard deviation of the smoothing
// kernel [cells].
const DefaultSmoothSigma = 1.0

// gaussianTruncate is the kernel radius in standard deviations.
const gaussianTruncate = 4.0

// GaussianFilter returns a copy of the 2-D grid a blurred with a Gaussian
// kernel of standard deviation sigma [cells]. The kernel is truncated at
// 4 sigma and the grid is extended by reflection about its edges, so
// (d c b a | a b c d | d c b a). a is not modified. If sigma <= 0 an
// unfiltered copy is returned.
func GaussianFilter(a *sparse.DenseArray, sigma float64) *sparse.DenseArray {
	if sigma <= 0 || len(a.Shape) != 2 {
		return a.Copy()
	}
	k := gaussianKernel(sigma)
	ny, nx := a.Shape[0], a.Shape[1]

	// Rows, then columns.
	tmp := sparse.ZerosDense(ny, nx)
	line := make([]float64, nx)
	for j := 0; j < ny; j++ {
		copy(line, a.Elements[j*nx:(j+1)*nx])
		convolve1d(tmp.Elements[j*nx:(j+1)*nx], line, k)
	}
	out := sparse.ZerosDense(ny, nx)
	col := make([]float64, ny)
	res := make([]float64, ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			col[j] = tmp.Elements[j*nx+i]
		}
		convolve1d(res, col, k)
		for j := 0; j < ny; j++ {
			out.Elements[j*nx+i] = res[j]
		}
	}
	return out
}

// gaussianKernel returns normalized weights for offsets -r..r.
func gaussianKernel(sigma float64) []float64 {
	r := int(gaussianTruncate*sigma + 0.5)
	k := make([]float64, 2*r+1)
	for x := -r; x <= r; x++ {
		k[x+r] = math.Exp(-0.5 * float64(x*x) / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

func convolve1d(dst, src, k []float64) {
	n := len(src)
	r := len(k) / 2
	for i := range dst {
		var v float64
		for o := -r; o <= r; o++ {
			v += k[o+r] * src[reflect(i+o, n)]
		}
		dst[i] = v
	}
}

// reflect maps an out-of-range index back into [0, n), repeating the edge
// value at the boundary.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}
