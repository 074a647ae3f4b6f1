/*
 * spacegroup.go, part of gomol.
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
Package spacegroup keeps structures on their symmetry during an optimization.
It does not detect symmetry itself: a Source oracle (an external tabulation,
or a hard-coded operator set in the tests) hands over the rotation/translation
operators of the group, and this package does the glue, mapping atoms onto
their images under each operator and averaging forces, displacements and cell
deformations over the group. A relaxed structure then cannot drift off the
symmetry its starting point had.
*/
package spacegroup

import (
	"fmt"

	v3 "github.com/gomolkit/gomol/v3"
	"gonum.org/v1/gonum/mat"
)

//Op is one symmetry operator in cartesian form: x -> Rot*x + Trans.
type Op struct {
	Rot   *mat.Dense //3x3
	Trans [3]float64
}

//Dataset is what a Source oracle reports for a structure: the group it found
//and its operators. Number and Symbol are informational.
type Dataset struct {
	Number int
	Symbol string
	Ops    []Op
}

//Source produces the symmetry operators of a structure. symprec is the
//cartesian distance tolerance under which two positions count as the same.
type Source interface {
	Dataset(coords *v3.Matrix, symprec float64) (*Dataset, error)
}

//StaticSource is a Source that always reports the same fixed Dataset,
//regardless of the structure it is shown. Useful when the group is known
//beforehand, and in tests.
type StaticSource Dataset

func (s *StaticSource) Dataset(coords *v3.Matrix, symprec float64) (*Dataset, error) {
	d := Dataset(*s)
	return &d, nil
}

//Symmetry is a prepared operator set: the operators of a Dataset plus, per
//operator, the permutation mapping every atom to its image.
type Symmetry struct {
	ds   *Dataset
	maps [][]int //maps[k][i] = index of the image of atom i under operator k
}

//Prep maps every atom of the structure to its image under every operator of
//the dataset, within the symprec cartesian tolerance. An atom with no image
//under some operator means the structure does not actually have the claimed
//symmetry, and is an error.
func Prep(coords *v3.Matrix, ds *Dataset, symprec float64) (*Symmetry, error) {
	n := coords.NVecs()
	s := &Symmetry{ds: ds, maps: make([][]int, len(ds.Ops))}
	img := make([]float64, 3)
	for k, op := range ds.Ops {
		s.maps[k] = make([]int, n)
		for i := 0; i < n; i++ {
			for r := 0; r < 3; r++ {
				img[r] = op.Trans[r]
				for c := 0; c < 3; c++ {
					img[r] += op.Rot.At(r, c) * coords.At(i, c)
				}
			}
			j := closest(coords, img, symprec)
			if j < 0 {
				return nil, fmt.Errorf("spacegroup: operator %d maps atom %d onto no atom (tolerance %g)", k, i, symprec)
			}
			s.maps[k][i] = j
		}
	}
	return s, nil
}

func closest(coords *v3.Matrix, p []float64, symprec float64) int {
	for j := 0; j < coords.NVecs(); j++ {
		dx := coords.At(j, 0) - p[0]
		dy := coords.At(j, 1) - p[1]
		dz := coords.At(j, 2) - p[2]
		if dx*dx+dy*dy+dz*dz <= symprec*symprec {
			return j
		}
	}
	return -1
}

//NOps returns the number of operators in the prepared set.
func (s *Symmetry) NOps() int {
	return len(s.ds.Ops)
}

//SymmetrizeForces averages the per-atom vectors in f over the group, in
//place: each operator rotates the vector on an atom and deposits it on the
//atom's image, and the deposits are averaged. A vector field that already has
//the symmetry is left untouched; anything that would break it cancels out.
func (s *Symmetry) SymmetrizeForces(f *v3.Matrix) error {
	n := f.NVecs()
	if len(s.maps) > 0 && len(s.maps[0]) != n {
		return fmt.Errorf("spacegroup: %d vectors for a %d-atom operator set", n, len(s.maps[0]))
	}
	acc := v3.Zeros(n)
	for k, op := range s.ds.Ops {
		for i := 0; i < n; i++ {
			j := s.maps[k][i]
			for r := 0; r < 3; r++ {
				v := 0.0
				for c := 0; c < 3; c++ {
					v += op.Rot.At(r, c) * f.At(i, c)
				}
				acc.Set(j, r, acc.At(j, r)+v)
			}
		}
	}
	acc.Scale(1/float64(len(s.ds.Ops)), acc)
	f.CopyFrom(acc)
	return nil
}

//SymmetrizeDeltaCell averages a rank-2 cell deformation over the group, in
//place: D <- (1/N) sum_k R_k D R_k'.
func (s *Symmetry) SymmetrizeDeltaCell(d *mat.Dense) error {
	r, c := d.Dims()
	if r != 3 || c != 3 {
		return fmt.Errorf("spacegroup: cell deformation is %dx%d, want 3x3", r, c)
	}
	acc := mat.NewDense(3, 3, nil)
	tmp := mat.NewDense(3, 3, nil)
	rot := mat.NewDense(3, 3, nil)
	for _, op := range s.ds.Ops {
		tmp.Mul(op.Rot, d)
		rot.Mul(tmp, op.Rot.T())
		acc.Add(acc, rot)
	}
	acc.Scale(1/float64(len(s.ds.Ops)), acc)
	d.Copy(acc)
	return nil
}

//Fixer is a constraint for the optimizers: it symmetrizes the forces on every
//step and replaces each position update by its symmetrized version, so the
//optimization cannot leave the symmetry of the starting structure. It
//satisfies the Constraint interface of the optimize package.
type Fixer struct {
	sym  *Symmetry
	prev *v3.Matrix
}

//NewFixer prepares a Fixer for the given starting structure, asking the
//oracle for the operators.
func NewFixer(coords *v3.Matrix, src Source, symprec float64) (*Fixer, error) {
	ds, err := src.Dataset(coords, symprec)
	if err != nil {
		return nil, err
	}
	sym, err := Prep(coords, ds, symprec)
	if err != nil {
		return nil, err
	}
	return &Fixer{sym: sym, prev: coords.Copy()}, nil
}

//Symmetry returns the prepared operator set the Fixer enforces.
func (F *Fixer) Symmetry() *Symmetry {
	return F.sym
}

//AdjustForces symmetrizes the forces in place.
func (F *Fixer) AdjustForces(coords, forces *v3.Matrix) error {
	return F.sym.SymmetrizeForces(forces)
}

//AdjustPositions symmetrizes the displacement since the last adjusted
//positions and reapplies it, keeping the structure on the symmetry.
func (F *Fixer) AdjustPositions(coords *v3.Matrix) error {
	step := v3.Zeros(coords.NVecs())
	step.Sub(coords, F.prev)
	if err := F.sym.SymmetrizeForces(step); err != nil {
		return err
	}
	coords.Add(F.prev, step)
	F.prev.CopyFrom(coords)
	return nil
}
