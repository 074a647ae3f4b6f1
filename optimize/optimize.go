/*
 * optimize.go, part of gomol.
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
Package optimize implements local geometry optimization of atomic structures
against any gomol.Calculator: FIRE (fast inertial relaxation engine) and BFGS
(quasi-Newton with an inverse-Hessian update). Both work on the coordinates in
place, consider the structure relaxed when the largest per-atom force norm
drops to the requested fmax, and can dump one trajectory frame per step.
*/
package optimize

import (
	"fmt"
	"log"

	gomol "github.com/gomolkit/gomol"
	"github.com/gomolkit/gomol/traj"
	v3 "github.com/gomolkit/gomol/v3"
)

//Result is what a finished (or given-up) optimization reports.
type Result struct {
	Converged bool
	Steps     int     //force evaluations spent
	Energy    float64 //at the final configuration
	Fmax      float64 //largest per-atom force norm at the final configuration
}

//Constraint adjusts forces (and optionally positions) during an optimization,
//e.g. to preserve a symmetry. The spacegroup package provides one.
type Constraint interface {
	AdjustForces(coords, forces *v3.Matrix) error
	AdjustPositions(coords *v3.Matrix) error
}

//stepper is the part an algorithm provides: one coordinate update from the
//current forces.
type stepper interface {
	step(coords, forces *v3.Matrix)
}

//loop is the shared run loop: evaluate, log, dump, test convergence, step.
func loop(calc gomol.Calculator, s stepper, name string, coords *v3.Matrix, fmax float64,
	maxSteps int, tw *traj.Writer, con Constraint, logging bool) (*Result, error) {
	if coords == nil {
		return nil, fmt.Errorf("optimize: nil coordinates")
	}
	forces := v3.Zeros(coords.NVecs())
	res := new(Result)
	for i := 0; i <= maxSteps; i++ {
		if err := calc.Forces(coords, forces); err != nil {
			return nil, fmt.Errorf("optimize: force evaluation %d: %w", i, err)
		}
		if con != nil {
			if err := con.AdjustForces(coords, forces); err != nil {
				return nil, fmt.Errorf("optimize: constraint on step %d: %w", i, err)
			}
		}
		e, err := calc.Energy(coords)
		if err != nil {
			return nil, fmt.Errorf("optimize: energy evaluation %d: %w", i, err)
		}
		res.Steps = i
		res.Energy = e
		res.Fmax = forces.MaxVecNorm()
		if logging {
			log.Printf("%s: step %3d  energy %12.6f  fmax %10.6f", name, i, e, res.Fmax)
		}
		if tw != nil {
			if err := tw.WriteStep(coords, e, forces); err != nil {
				return nil, fmt.Errorf("optimize: trajectory dump on step %d: %w", i, err)
			}
		}
		if res.Fmax <= fmax {
			res.Converged = true
			return res, nil
		}
		if i == maxSteps {
			break
		}
		s.step(coords, forces)
		if con != nil {
			if err := con.AdjustPositions(coords); err != nil {
				return nil, fmt.Errorf("optimize: constraint on step %d: %w", i, err)
			}
		}
	}
	return res, nil
}
