/*
 * bfgs.go, part of gomol.
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

package optimize

import (
	"math"

	gomol "github.com/gomolkit/gomol"
	"github.com/gomolkit/gomol/traj"
	v3 "github.com/gomolkit/gomol/v3"
	"gonum.org/v1/gonum/mat"
)

//BFGS is a quasi-Newton optimizer keeping an approximate inverse Hessian of
//the flattened coordinates, updated from the observed position and gradient
//differences. Near a minimum it converges much faster than FIRE; far away the
//quadratic model can be poor, which is what MaxStep guards against.
type BFGS struct {
	Calc    gomol.Calculator
	Alpha   float64 //initial Hessian is Alpha times the identity
	MaxStep float64 //largest single-atom displacement per step
	Logging bool
	tw      *traj.Writer
	con     Constraint
	//state
	binv  *mat.Dense
	xPrev *mat.VecDense
	gPrev *mat.VecDense
}

//NewBFGS returns a BFGS optimizer with the standard parameters.
func NewBFGS(calc gomol.Calculator) *BFGS {
	return &BFGS{Calc: calc, Alpha: 70.0, MaxStep: 0.2}
}

//AttachTraj makes Run dump one frame per step to the given trajectory writer.
//The caller keeps ownership and closes it.
func (B *BFGS) AttachTraj(w *traj.Writer) {
	B.tw = w
}

//SetConstraint makes Run pass forces and positions through the given
//constraint on every step.
func (B *BFGS) SetConstraint(con Constraint) {
	B.con = con
}

//Run relaxes coords in place until the largest per-atom force norm is at most
//fmax, or maxSteps force evaluations have been spent.
func (B *BFGS) Run(coords *v3.Matrix, fmax float64, maxSteps int) (*Result, error) {
	B.binv = nil
	B.xPrev = nil
	B.gPrev = nil
	return loop(B.Calc, B, "BFGS", coords, fmax, maxSteps, B.tw, B.con, B.Logging)
}

func (B *BFGS) step(coords, forces *v3.Matrix) {
	n := coords.NVecs()
	dim := 3 * n
	x := mat.NewVecDense(dim, nil)
	g := mat.NewVecDense(dim, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			x.SetVec(3*i+k, coords.At(i, k))
			g.SetVec(3*i+k, -forces.At(i, k))
		}
	}
	if B.binv == nil {
		B.binv = mat.NewDense(dim, dim, nil)
		for i := 0; i < dim; i++ {
			B.binv.Set(i, i, 1/B.Alpha)
		}
	} else {
		B.update(x, g, dim)
	}
	//quasi-Newton direction: minus inverse Hessian times gradient
	p := mat.NewVecDense(dim, nil)
	p.MulVec(B.binv, g)
	p.ScaleVec(-1, p)
	//clamp the largest single-atom displacement
	longest := 0.0
	for i := 0; i < n; i++ {
		d := p.AtVec(3*i)*p.AtVec(3*i) + p.AtVec(3*i+1)*p.AtVec(3*i+1) + p.AtVec(3*i+2)*p.AtVec(3*i+2)
		if d > longest {
			longest = d
		}
	}
	if longest > B.MaxStep*B.MaxStep {
		p.ScaleVec(B.MaxStep/math.Sqrt(longest), p)
	}
	B.xPrev = mat.VecDenseCopyOf(x)
	B.gPrev = mat.VecDenseCopyOf(g)
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			coords.Set(i, k, coords.At(i, k)+p.AtVec(3*i+k))
		}
	}
}

//update applies the inverse-Hessian BFGS formula,
//Binv <- (I - rho s y')*Binv*(I - rho y s') + rho s s', with s and y the last
//position and gradient differences. A non-positive s'y would break the
//positive-definiteness, so those updates are skipped.
func (B *BFGS) update(x, g *mat.VecDense, dim int) {
	s := mat.NewVecDense(dim, nil)
	s.SubVec(x, B.xPrev)
	y := mat.NewVecDense(dim, nil)
	y.SubVec(g, B.gPrev)
	sy := mat.Dot(s, y)
	if sy <= 1e-12 {
		return
	}
	rho := 1 / sy
	left := eyeMinusOuter(dim, rho, s, y)
	right := eyeMinusOuter(dim, rho, y, s)
	tmp := mat.NewDense(dim, dim, nil)
	tmp.Mul(left, B.binv)
	B.binv.Mul(tmp, right)
	var ss mat.Dense
	ss.Outer(rho, s, s)
	B.binv.Add(B.binv, &ss)
}

//eyeMinusOuter returns I - rho * a b'.
func eyeMinusOuter(dim int, rho float64, a, b *mat.VecDense) *mat.Dense {
	var m mat.Dense
	m.Outer(-rho, a, b)
	for i := 0; i < dim; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
	return &m
}
