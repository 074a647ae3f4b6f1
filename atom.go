/*
 * atom.go, part of gomol.
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

package gomol

import (
	"fmt"
	"sort"
	"strings"

	v3 "github.com/gomolkit/gomol/v3"
)

//Atom contains the per-atom data that does not change along a trajectory.
//Coordinates are kept separately, in a v3.Matrix, so several snapshots can
//share the same atoms.
type Atom struct {
	Symbol string
	Name   string
	ID     int
	Mass   float64
	Charge float64
}

//Copy returns a copy of the Atom object.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("attempted to copy a nil atom")
	}
	na := new(Atom)
	*na = *A
	return na
}

//System is a set of atoms plus one set of cartesian coordinates for them, and,
//optionally, the 3 vectors of the periodic cell (a 3x3 v3.Matrix, one vector
//per row, nil for non-periodic systems).
type System struct {
	atoms  []*Atom
	Coords *v3.Matrix
	Cell   *v3.Matrix
}

//NewSystem builds a System from atoms and coordinates. It returns an error if
//either is nil or if their sizes don't match.
func NewSystem(atoms []*Atom, coords *v3.Matrix) (*System, error) {
	if atoms == nil || coords == nil {
		return nil, fmt.Errorf("gomol.NewSystem: nil atoms or coordinates")
	}
	if len(atoms) != coords.NVecs() {
		return nil, fmt.Errorf("gomol.NewSystem: %d atoms but %d coordinate vectors", len(atoms), coords.NVecs())
	}
	return &System{atoms: atoms, Coords: coords}, nil
}

//Atom returns the Atom corresponding to the index i. It panics if i is out
//of range, as corresponding to a fundamental function.
func (S *System) Atom(i int) *Atom {
	if i >= S.Len() {
		panic("requested atom out of range")
	}
	return S.atoms[i]
}

//Len returns the number of atoms in the system.
func (S *System) Len() int {
	return len(S.atoms)
}

//Masses returns a slice with the masses of all atoms in the system. Atoms with
//a zero mass get it looked up from their symbol; an unknown symbol is an error.
func (S *System) Masses() ([]float64, error) {
	m := make([]float64, S.Len())
	for i, at := range S.atoms {
		if at.Mass > 0 {
			m[i] = at.Mass
			continue
		}
		mass, ok := symbolMass[at.Symbol]
		if !ok {
			return nil, fmt.Errorf("gomol.Masses: no mass for symbol %q (atom %d)", at.Symbol, i)
		}
		m[i] = mass
	}
	return m, nil
}

//Symbols returns the chemical symbols of all atoms, in order.
func (S *System) Symbols() []string {
	s := make([]string, S.Len())
	for i, at := range S.atoms {
		s[i] = at.Symbol
	}
	return s
}

//Formula returns the Hill-ish chemical formula of the system: element counts
//with elements sorted alphabetically, count omitted when 1 (e.g. "H2O").
func (S *System) Formula() string {
	counts := map[string]int{}
	for _, at := range S.atoms {
		counts[at.Symbol]++
	}
	syms := make([]string, 0, len(counts))
	for s := range counts {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	var b strings.Builder
	for _, s := range syms {
		b.WriteString(s)
		if counts[s] > 1 {
			fmt.Fprintf(&b, "%d", counts[s])
		}
	}
	return b.String()
}
