/*
 * fire.go, part of gomol.
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
)

//FIRE is the fast inertial relaxation engine (Bitzek et al., PRL 97, 170201):
//damped molecular dynamics whose velocities are steered towards the force
//direction while uphill motion resets them. Robust far from the minimum,
//which makes it the usual first choice. The exported fields are the standard
//parameters and can be changed between construction and Run.
type FIRE struct {
	Calc    gomol.Calculator
	Dt      float64 //initial time step
	DtMax   float64
	MaxStep float64 //largest total displacement norm per step
	NMin    int     //downhill steps before acceleration starts
	FInc    float64
	FDec    float64
	AStart  float64
	FA      float64
	Logging bool
	tw      *traj.Writer
	//state
	v     *v3.Matrix
	a     float64
	dt    float64
	nGood int
}

//NewFIRE returns a FIRE optimizer with the standard parameters.
func NewFIRE(calc gomol.Calculator) *FIRE {
	return &FIRE{
		Calc:    calc,
		Dt:      0.1,
		DtMax:   1.0,
		MaxStep: 0.2,
		NMin:    5,
		FInc:    1.1,
		FDec:    0.5,
		AStart:  0.1,
		FA:      0.99,
	}
}

//AttachTraj makes Run dump one frame (positions, energy, forces) per step to
//the given trajectory writer. The caller keeps ownership and closes it.
func (F *FIRE) AttachTraj(w *traj.Writer) {
	F.tw = w
}

//Run relaxes coords in place until the largest per-atom force norm is at most
//fmax, or maxSteps force evaluations have been spent.
func (F *FIRE) Run(coords *v3.Matrix, fmax float64, maxSteps int) (*Result, error) {
	F.v = v3.Zeros(coords.NVecs())
	F.a = F.AStart
	F.dt = F.Dt
	F.nGood = 0
	return loop(F.Calc, F, "FIRE", coords, fmax, maxSteps, F.tw, nil, F.Logging)
}

func (F *FIRE) step(coords, forces *v3.Matrix) {
	p := F.v.Dot(forces)
	if p > 0 {
		//steer the velocity towards the force direction
		vnorm := F.v.Norm()
		fnorm := forces.Norm()
		if fnorm > 0 {
			for i := 0; i < F.v.NVecs(); i++ {
				for k := 0; k < 3; k++ {
					F.v.Set(i, k, (1-F.a)*F.v.At(i, k)+F.a*vnorm*forces.At(i, k)/fnorm)
				}
			}
		}
		if F.nGood > F.NMin {
			F.dt = math.Min(F.dt*F.FInc, F.DtMax)
			F.a *= F.FA
		}
		F.nGood++
	} else {
		//moving uphill: freeze and restart the damping
		F.v.Scale(0, F.v)
		F.a = F.AStart
		F.dt *= F.FDec
		F.nGood = 0
	}
	F.v.AddScaled(F.v, F.dt, forces)
	dr := F.v.Copy()
	dr.Scale(F.dt, dr)
	if n := dr.Norm(); n > F.MaxStep {
		dr.Scale(F.MaxStep/n, dr)
	}
	coords.Add(coords, dr)
}
