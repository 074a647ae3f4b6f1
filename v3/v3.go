/*
 * v3.go, part of gomol.
 *
 * Copyright 2026 The gomol developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

/*
Package v3 implements a Matrix type representing a row-major Nx3 matrix, used
in gomol for the cartesian coordinates of sets of atoms (one atom per row) and
for forces on them. It wraps gonum's Dense type, restricted to 3 columns, plus
a few operations that gomol needs all the time.
*/
package v3

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//Matrix is a set of vectors in 3D space, one per row. It embeds a gonum Dense
//matrix, so every mat.Matrix method is available on it.
type Matrix struct {
	*mat.Dense
}

//Zeros returns a zero-filled Matrix with vecs vectors.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

//New returns a Matrix backed by data, which must have a length multiple of 3.
//The data is not copied, so changes to the Matrix are visible in the slice.
func New(data []float64) (*Matrix, error) {
	if len(data)%3 != 0 {
		return nil, fmt.Errorf("v3.New: data length %d not a multiple of 3", len(data))
	}
	return &Matrix{mat.NewDense(len(data)/3, 3, data)}, nil
}

//Dense2Matrix takes a gonum Dense matrix and returns a Matrix sharing its
//backing data. The Dense must have 3 columns.
func Dense2Matrix(A *mat.Dense) *Matrix {
	_, c := A.Dims()
	if c != 3 {
		panic("v3.Dense2Matrix: matrix must have 3 columns")
	}
	return &Matrix{A}
}

//Matrix2Dense returns the embedded gonum Dense of A.
func Matrix2Dense(A *Matrix) *mat.Dense {
	return A.Dense
}

//NVecs returns the number of vectors (rows) in the matrix.
func (M *Matrix) NVecs() int {
	r, _ := M.Dims()
	return r
}

//Copy returns a newly allocated copy of the matrix.
func (M *Matrix) Copy() *Matrix {
	N := Zeros(M.NVecs())
	N.Dense.Copy(M.Dense)
	return N
}

//CopyFrom copies the contents of A into the receiver. Both matrices must have
//the same number of vectors.
func (M *Matrix) CopyFrom(A *Matrix) {
	M.Dense.Copy(A.Dense)
}

//VecView returns a view (not a copy) of the i-th vector as a 1x3 Matrix.
func (M *Matrix) VecView(i int) *Matrix {
	return &Matrix{M.Slice(i, i+1, 0, 3).(*mat.Dense)}
}

//Sub puts A-B in the receiver. All matrices must have the same size.
func (M *Matrix) Sub(A, B *Matrix) {
	M.Dense.Sub(A.Dense, B.Dense)
}

//Add puts A+B in the receiver. All matrices must have the same size.
func (M *Matrix) Add(A, B *Matrix) {
	M.Dense.Add(A.Dense, B.Dense)
}

//Scale puts f*A in the receiver, which may be A itself.
func (M *Matrix) Scale(f float64, A *Matrix) {
	M.Dense.Scale(f, A.Dense)
}

//AddScaled puts A+f*B in the receiver, which may be A itself.
func (M *Matrix) AddScaled(A *Matrix, f float64, B *Matrix) {
	for i := 0; i < A.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			M.Set(i, j, A.At(i, j)+f*B.At(i, j))
		}
	}
}

//Norm returns the Frobenius norm of the whole matrix, i.e. the euclidean
//norm of the flattened coordinates.
func (M *Matrix) Norm() float64 {
	return mat.Norm(M.Dense, 2)
}

//VecNorm returns the euclidean norm of the i-th vector.
func (M *Matrix) VecNorm(i int) float64 {
	x, y, z := M.At(i, 0), M.At(i, 1), M.At(i, 2)
	return math.Sqrt(x*x + y*y + z*z)
}

//MaxVecNorm returns the largest per-vector euclidean norm in the matrix.
//For a matrix of forces this is the "fmax" convergence measure used by the
//optimizers.
func (M *Matrix) MaxVecNorm() float64 {
	max := 0.0
	for i := 0; i < M.NVecs(); i++ {
		if n := M.VecNorm(i); n > max {
			max = n
		}
	}
	return max
}

//Dot returns the dot product of the matrices seen as flattened vectors.
func (M *Matrix) Dot(A *Matrix) float64 {
	sum := 0.0
	for i := 0; i < M.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			sum += M.At(i, j) * A.At(i, j)
		}
	}
	return sum
}

//Raw returns the backing slice of the matrix, row after row. The slice is not
//a copy: writes to it are visible in the matrix.
func (M *Matrix) Raw() []float64 {
	return M.RawMatrix().Data
}
