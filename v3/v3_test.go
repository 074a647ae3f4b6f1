package v3

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBasics(Te *testing.T) {
	M, err := New([]float64{
		1, 0, 0,
		0, 3, 4,
	})
	if err != nil {
		Te.Fatal(err)
	}
	if M.NVecs() != 2 {
		Te.Errorf("NVecs() = %d", M.NVecs())
	}
	if M.VecNorm(0) != 1 || M.VecNorm(1) != 5 {
		Te.Errorf("vector norms: %v %v", M.VecNorm(0), M.VecNorm(1))
	}
	if M.MaxVecNorm() != 5 {
		Te.Errorf("MaxVecNorm() = %v", M.MaxVecNorm())
	}
	if _, err := New([]float64{1, 2}); err == nil {
		Te.Error("data of length 2 accepted")
	}
	v := M.VecView(1)
	v.Set(0, 1, -3)
	if M.At(1, 1) != -3 {
		Te.Error("VecView is not a view")
	}
	raw := M.Raw()
	raw[0] = 7
	if M.At(0, 0) != 7 {
		Te.Error("Raw is not the backing slice")
	}
}

func TestArithmetic(Te *testing.T) {
	A, _ := New([]float64{1, 2, 3, 4, 5, 6})
	B, _ := New([]float64{1, 1, 1, 2, 2, 2})
	C := Zeros(2)
	C.Add(A, B)
	if C.At(1, 2) != 8 {
		Te.Errorf("Add: %v", C.At(1, 2))
	}
	C.Sub(A, B)
	if C.At(0, 0) != 0 || C.At(1, 0) != 2 {
		Te.Errorf("Sub: %v %v", C.At(0, 0), C.At(1, 0))
	}
	C.AddScaled(A, 2, B)
	if C.At(0, 1) != 4 || C.At(1, 1) != 9 {
		Te.Errorf("AddScaled: %v %v", C.At(0, 1), C.At(1, 1))
	}
	//AddScaled may write into its first operand
	D := A.Copy()
	D.AddScaled(D, -1, A)
	if D.Norm() != 0 {
		Te.Errorf("in-place AddScaled: %v", D.Norm())
	}
	if got := A.Dot(B); got != 1+2+3+8+10+12 {
		Te.Errorf("Dot: %v", got)
	}
	want := math.Sqrt(1 + 4 + 9 + 16 + 25 + 36)
	if math.Abs(A.Norm()-want) > 1e-12 {
		Te.Errorf("Norm: %v, want %v", A.Norm(), want)
	}
}

func TestCopies(Te *testing.T) {
	A, _ := New([]float64{1, 2, 3, 4, 5, 6})
	B := A.Copy()
	B.Set(0, 0, 100)
	if A.At(0, 0) != 1 {
		Te.Error("Copy shares backing data")
	}
	C := Zeros(2)
	C.CopyFrom(A)
	if C.At(1, 2) != 6 {
		Te.Errorf("CopyFrom: %v", C.At(1, 2))
	}
}

func TestDenseConversion(Te *testing.T) {
	d := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	M := Dense2Matrix(d)
	if M.At(1, 1) != 5 {
		Te.Errorf("Dense2Matrix: %v", M.At(1, 1))
	}
	//shared data, both ways
	M.Set(0, 0, 9)
	if d.At(0, 0) != 9 {
		Te.Error("Dense2Matrix copies the data")
	}
	if Matrix2Dense(M) != d {
		Te.Error("Matrix2Dense is not the embedded Dense")
	}
	defer func() {
		if recover() == nil {
			Te.Error("Dense2Matrix accepted a 2-column matrix")
		}
	}()
	Dense2Matrix(mat.NewDense(2, 2, nil))
}
