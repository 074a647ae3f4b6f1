/*
 * calc.go, part of gomol.
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

//Package calc provides simple gomol.Calculator implementations, useful for
//exercising the optimizers and trajectory machinery without a real
//electronic-structure backend: a pairwise Lennard-Jones potential and a
//harmonic tether to a reference structure.
package calc

import (
	"fmt"
	"math"

	v3 "github.com/gomolkit/gomol/v3"
)

//LJ is a plain pairwise Lennard-Jones potential,
//E = sum_{i<j} 4*eps*((sigma/r)^12 - (sigma/r)^6), with no cutoff and no
//periodic images. Its dimer minimum sits at r = 2^(1/6)*sigma.
type LJ struct {
	Epsilon float64
	Sigma   float64
}

//NewLJ returns a Lennard-Jones calculator with the given well depth and size.
func NewLJ(epsilon, sigma float64) *LJ {
	return &LJ{Epsilon: epsilon, Sigma: sigma}
}

//Energy returns the total pairwise energy of the configuration.
func (L *LJ) Energy(coords *v3.Matrix) (float64, error) {
	n := coords.NVecs()
	e := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r2 := dist2(coords, i, j)
			if r2 == 0 {
				return 0, fmt.Errorf("calc: atoms %d and %d coincide", i, j)
			}
			s2 := L.Sigma * L.Sigma / r2
			s6 := s2 * s2 * s2
			e += 4 * L.Epsilon * (s6*s6 - s6)
		}
	}
	return e, nil
}

//Forces puts the forces of the configuration in out, which must have the same
//number of vectors as coords.
func (L *LJ) Forces(coords, out *v3.Matrix) error {
	n := coords.NVecs()
	if out.NVecs() != n {
		return fmt.Errorf("calc: forces output has %d rows, coordinates %d", out.NVecs(), n)
	}
	out.Scale(0, out)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r2 := dist2(coords, i, j)
			if r2 == 0 {
				return fmt.Errorf("calc: atoms %d and %d coincide", i, j)
			}
			s2 := L.Sigma * L.Sigma / r2
			s6 := s2 * s2 * s2
			//dE/dr * 1/r, so multiplying by the displacement gives the force
			fr := 24 * L.Epsilon * (2*s6*s6 - s6) / r2
			for k := 0; k < 3; k++ {
				d := coords.At(i, k) - coords.At(j, k)
				out.Set(i, k, out.At(i, k)+fr*d)
				out.Set(j, k, out.At(j, k)-fr*d)
			}
		}
	}
	return nil
}

func dist2(c *v3.Matrix, i, j int) float64 {
	dx := c.At(i, 0) - c.At(j, 0)
	dy := c.At(i, 1) - c.At(j, 1)
	dz := c.At(i, 2) - c.At(j, 2)
	return dx*dx + dy*dy + dz*dz
}

//Harmonic tethers every atom to its position in a reference structure,
//E = k/2 * sum_i |r_i - ref_i|^2. Handy as a strictly convex test potential:
//the minimum is the reference itself.
type Harmonic struct {
	K   float64
	Ref *v3.Matrix
}

//NewHarmonic returns a harmonic-tether calculator with spring constant k and
//the given reference positions. The reference is copied.
func NewHarmonic(k float64, ref *v3.Matrix) *Harmonic {
	return &Harmonic{K: k, Ref: ref.Copy()}
}

//Energy returns the total tether energy of the configuration.
func (H *Harmonic) Energy(coords *v3.Matrix) (float64, error) {
	n := coords.NVecs()
	if H.Ref.NVecs() != n {
		return 0, fmt.Errorf("calc: %d coordinates for a reference of %d", n, H.Ref.NVecs())
	}
	e := 0.0
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			d := coords.At(i, k) - H.Ref.At(i, k)
			e += 0.5 * H.K * d * d
		}
	}
	return e, nil
}

//Forces puts the tether forces of the configuration in out.
func (H *Harmonic) Forces(coords, out *v3.Matrix) error {
	n := coords.NVecs()
	if H.Ref.NVecs() != n || out.NVecs() != n {
		return fmt.Errorf("calc: mismatched sizes: %d coordinates, %d reference, %d output",
			n, H.Ref.NVecs(), out.NVecs())
	}
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			out.Set(i, k, -H.K*(coords.At(i, k)-H.Ref.At(i, k)))
		}
	}
	return nil
}

//NumForces fills out with a central-difference numerical gradient of the
//energy of c, with the given step. It is slow and only meant for testing
//analytic Forces implementations against.
func NumForces(c interface {
	Energy(*v3.Matrix) (float64, error)
}, coords, out *v3.Matrix, h float64) error {
	n := coords.NVecs()
	work := coords.Copy()
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			orig := work.At(i, k)
			work.Set(i, k, orig+h)
			ep, err := c.Energy(work)
			if err != nil {
				return err
			}
			work.Set(i, k, orig-h)
			em, err := c.Energy(work)
			if err != nil {
				return err
			}
			work.Set(i, k, orig)
			out.Set(i, k, -(ep-em)/(2*h))
		}
	}
	return nil
}

//EquilibriumDist returns the dimer equilibrium distance of a Lennard-Jones
//potential, 2^(1/6)*sigma.
func (L *LJ) EquilibriumDist() float64 {
	return math.Pow(2, 1.0/6.0) * L.Sigma
}
