package calc

import (
	"math"
	"testing"

	gomol "github.com/gomolkit/gomol"
	v3 "github.com/gomolkit/gomol/v3"
)

func TestLJDimer(Te *testing.T) {
	L := NewLJ(1.0, 1.0)
	var _ gomol.Calculator = L
	req := L.EquilibriumDist()
	c := v3.Zeros(2)
	c.Set(1, 0, req)
	//at equilibrium the energy is -eps and the force vanishes
	e, err := L.Energy(c)
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(e+1.0) > 1e-12 {
		Te.Errorf("dimer energy at equilibrium: %v, want -1", e)
	}
	f := v3.Zeros(2)
	if err := L.Forces(c, f); err != nil {
		Te.Fatal(err)
	}
	if fm := f.MaxVecNorm(); fm > 1e-12 {
		Te.Errorf("force at equilibrium: %v", fm)
	}
	//compressed dimer pushes apart, stretched pulls together
	c.Set(1, 0, 0.9*req)
	if err := L.Forces(c, f); err != nil {
		Te.Fatal(err)
	}
	if f.At(1, 0) <= 0 {
		Te.Errorf("compressed dimer force on atom 1: %v, want > 0", f.At(1, 0))
	}
	c.Set(1, 0, 1.3*req)
	if err := L.Forces(c, f); err != nil {
		Te.Fatal(err)
	}
	if f.At(1, 0) >= 0 {
		Te.Errorf("stretched dimer force on atom 1: %v, want < 0", f.At(1, 0))
	}
}

func TestLJNumericalGradient(Te *testing.T) {
	L := NewLJ(0.7, 1.2)
	c := v3.Zeros(3)
	c.Set(0, 0, 0.1)
	c.Set(1, 0, 1.4)
	c.Set(1, 1, 0.2)
	c.Set(2, 1, 1.5)
	c.Set(2, 2, -0.3)
	analytic := v3.Zeros(3)
	if err := L.Forces(c, analytic); err != nil {
		Te.Fatal(err)
	}
	numeric := v3.Zeros(3)
	if err := NumForces(L, c, numeric, 1e-6); err != nil {
		Te.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			if d := math.Abs(analytic.At(i, k) - numeric.At(i, k)); d > 1e-5 {
				Te.Errorf("force (%d,%d): analytic %v vs numeric %v",
					i, k, analytic.At(i, k), numeric.At(i, k))
			}
		}
	}
}

func TestHarmonic(Te *testing.T) {
	ref := v3.Zeros(2)
	ref.Set(1, 2, 1.0)
	H := NewHarmonic(2.0, ref)
	var _ gomol.Calculator = H
	//at the reference everything vanishes
	e, err := H.Energy(ref)
	if err != nil {
		Te.Fatal(err)
	}
	if e != 0 {
		Te.Errorf("energy at the reference: %v", e)
	}
	c := ref.Copy()
	c.Set(0, 0, 0.5)
	e, err = H.Energy(c)
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(e-0.25) > 1e-12 { //k/2 * 0.5^2
		Te.Errorf("displaced energy: %v, want 0.25", e)
	}
	f := v3.Zeros(2)
	if err := H.Forces(c, f); err != nil {
		Te.Fatal(err)
	}
	if math.Abs(f.At(0, 0)+1.0) > 1e-12 { //-k*0.5
		Te.Errorf("displaced force: %v, want -1", f.At(0, 0))
	}
	numeric := v3.Zeros(2)
	if err := NumForces(H, c, numeric, 1e-6); err != nil {
		Te.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		for k := 0; k < 3; k++ {
			if d := math.Abs(f.At(i, k) - numeric.At(i, k)); d > 1e-6 {
				Te.Errorf("harmonic force (%d,%d): analytic %v vs numeric %v",
					i, k, f.At(i, k), numeric.At(i, k))
			}
		}
	}
}
