/*
 * traj.go, part of gomol.
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

//Package traj reads and writes molecular trajectories stored in ulm archives:
//one frame per step, with the positions as an (N,3) float64 array, and
//optionally the step number, cell vectors, potential energy and forces.
package traj

import (
	"fmt"

	gomol "github.com/gomolkit/gomol"
	"github.com/gomolkit/gomol/ulm"
	v3 "github.com/gomolkit/gomol/v3"
	"gonum.org/v1/gonum/mat"
)

//The frame keys. Readers tolerate frames that carry only positions.
const (
	keyPositions = "positions"
	keyForces    = "forces"
	keyCell      = "cell"
	keyEnergy    = "energy"
	keyFmax      = "fmax"
	keyStep      = "step"
)

//Write!
type Writer struct {
	w         *ulm.Writer
	natoms    int
	filename  string
	writeable bool
	step      int
}

//NewWriter opens a trajectory for writing, truncating any previous file under
//the same name. natoms is the number of atoms of every frame to come.
func NewWriter(name string, natoms int) (*Writer, error) {
	w, err := ulm.CreateOverwrite(name)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, natoms: natoms, filename: name, writeable: true}, nil
}

//AppendWriter opens an existing trajectory and gets ready to add frames after
//the last one.
func AppendWriter(name string, natoms int) (*Writer, error) {
	w, err := ulm.Append(name)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, natoms: natoms, filename: name, writeable: true, step: w.NItems()}, nil
}

//Len returns the number of atoms in each frame of the trajectory.
func (T *Writer) Len() int {
	return T.natoms
}

//compatibility with Gonum
func (T *Writer) WNextDense(dcoord *mat.Dense) error {
	coord := v3.Dense2Matrix(dcoord)
	err := T.WNext(coord)
	if err != nil {
		err = errDecorate(err, "WNextDense")
	}
	return err
}

//WNext writes the next frame: coordinates and, if given, a 9-value box (three
//cell vectors, row after row).
func (T *Writer) WNext(coord *v3.Matrix, box ...[]float64) error {
	return T.wframe(coord, nil, nil, box...)
}

//WriteStep writes the next frame with the energy and forces of the
//configuration alongside the coordinates; the maximum force norm is stored
//too, so a reader can check convergence without touching the forces array.
//This is the entry point optimizers use. forces may be nil.
func (T *Writer) WriteStep(coord *v3.Matrix, energy float64, forces *v3.Matrix) error {
	return T.wframe(coord, &energy, forces)
}

func (T *Writer) wframe(coord *v3.Matrix, energy *float64, forces *v3.Matrix, box ...[]float64) error {
	if !T.writeable {
		return Error{TrajUnIniWrite, T.filename, []string{"WNext"}, true}
	}
	if coord == nil {
		return Error{NilCoordinates, T.filename, []string{"WNext"}, true}
	}
	v := coord.NVecs()
	if v != T.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, T.natoms), T.filename, []string{"WNext"}, true}
	}
	if err := T.w.Write(keyStep, ulm.Int(int64(T.step))); err != nil {
		return errDecorate(err, "WNext")
	}
	if len(box) > 0 && len(box[0]) >= 9 {
		b := make([]float64, 9)
		copy(b, box[0])
		if err := T.w.Write(keyCell, ulm.Floats(b, 3, 3)); err != nil {
			return errDecorate(err, "WNext")
		}
	}
	if energy != nil {
		if err := T.w.Write(keyEnergy, ulm.Float(*energy)); err != nil {
			return errDecorate(err, "WNext")
		}
	}
	if forces != nil {
		if forces.NVecs() != T.natoms {
			return Error{fmt.Sprintf("%d forces given, but %d expected", forces.NVecs(), T.natoms), T.filename, []string{"WNext"}, true}
		}
		if err := T.w.Write(keyFmax, ulm.Float(forces.MaxVecNorm())); err != nil {
			return errDecorate(err, "WNext")
		}
	}
	if err := T.w.AddArray(keyPositions, ulm.DtypeFloat64, T.natoms, 3); err != nil {
		return errDecorate(err, "WNext")
	}
	if err := T.w.FillDense(v3.Matrix2Dense(coord)); err != nil {
		return errDecorate(err, "WNext")
	}
	if forces != nil {
		if err := T.w.AddArray(keyForces, ulm.DtypeFloat64, T.natoms, 3); err != nil {
			return errDecorate(err, "WNext")
		}
		if err := T.w.FillDense(v3.Matrix2Dense(forces)); err != nil {
			return errDecorate(err, "WNext")
		}
	}
	if err := T.w.Sync(); err != nil {
		return errDecorate(err, "WNext")
	}
	T.step++
	return nil
}

//Close commits any pending frame and closes the file. The Writer can not be
//used after this call.
func (T *Writer) Close() error {
	if !T.writeable {
		return nil
	}
	T.writeable = false
	return T.w.Close()
}

//Read!
type Reader struct {
	r        *ulm.Reader
	natoms   int
	filename string
	next     int
	readable bool
}

//New opens a trajectory for reading and returns a handle to it. The number of
//atoms is taken from the positions array of the first frame.
func New(name string) (*Reader, error) {
	r, err := ulm.Open(name)
	if err != nil {
		return nil, err
	}
	T := &Reader{r: r, natoms: -1, filename: name, readable: true}
	if r.NItems() > 0 {
		p, err := r.Proxy(keyPositions)
		if err != nil {
			r.Close()
			return nil, errDecorate(err, "New")
		}
		sh := p.Shape()
		if len(sh) != 2 || sh[1] != 3 {
			r.Close()
			return nil, Error{fmt.Sprintf("positions array has shape %v, want (N,3)", sh), name, []string{"New"}, true}
		}
		T.natoms = sh[0]
	}
	return T, nil
}

//Readable returns true if it is possible to call Next on the handle.
func (T *Reader) Readable() bool {
	return T.readable
}

//Len returns the number of atoms in each frame of the trajectory.
func (T *Reader) Len() int {
	return T.natoms
}

//NFrames returns the number of frames in the trajectory.
func (T *Reader) NFrames() int {
	return T.r.NItems()
}

//Frame returns the raw archive view of frame i, for metadata the plain
//trajectory interface does not carry (energy, fmax, step).
func (T *Reader) Frame(i int) (*ulm.Frame, error) {
	return T.r.Frame(i)
}

//Next puts in the given matrix the coordinates of the next frame of the
//trajectory and, if asked for and present, the cell vectors in box. A nil
//matrix skips the frame. When the trajectory is over, Next closes the handle
//and returns an error implementing gomol.LastFrameError: the end of a
//trajectory is not an actual failure.
func (T *Reader) Next(c *v3.Matrix, box ...[]float64) error {
	if !T.readable {
		return Error{TrajUnIniRead, T.filename, []string{"Next"}, true}
	}
	if T.next >= T.r.NItems() {
		T.Close()
		return newlastFrameError(T.filename, "Next")
	}
	fr, err := T.r.Frame(T.next)
	if err != nil {
		return errDecorate(err, "Next")
	}
	T.next++
	if c != nil {
		p, err := fr.Proxy(keyPositions)
		if err != nil {
			return errDecorate(err, "Next")
		}
		if p.Len() != T.natoms {
			return Error{fmt.Sprintf("frame %d has %d atoms, expected %d", T.next-1, p.Len(), T.natoms), T.filename, []string{"Next"}, true}
		}
		data, err := p.AllFloat64s()
		if err != nil {
			return errDecorate(err, "Next")
		}
		for i := 0; i < T.natoms; i++ {
			c.Set(i, 0, data[3*i])
			c.Set(i, 1, data[3*i+1])
			c.Set(i, 2, data[3*i+2])
		}
	}
	if len(box) > 0 && len(box[0]) >= 9 && fr.Has(keyCell) {
		pc, err := fr.Proxy(keyCell)
		if err != nil {
			return errDecorate(err, "Next")
		}
		cell, err := pc.AllFloat64s()
		if err != nil {
			return errDecorate(err, "Next")
		}
		copy(box[0], cell)
	}
	return nil
}

//Close closes the handle, and marks it as unreadable.
func (T *Reader) Close() {
	if !T.readable {
		return
	}
	T.r.Close()
	T.readable = false
}

//Errors

//errDecorate decorates an error with the caller's name when it implements
//gomol.Error; raw I/O errors from the filesystem pass through unchanged.
func errDecorate(err error, caller string) error {
	err2, ok := err.(gomol.Error)
	if !ok {
		return err
	}
	err2.Decorate(caller)
	return err2
}

//Error is the general structure for trajectory errors. It fulfills
//gomol.Error and gomol.FileError.
type Error struct {
	message  string
	filename string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("traj file %s error: %s", err.filename, err.message)
}

//Decorate adds new information to the error
func (E Error) Decorate(deco string) []string {
	//It works even without a pointer receiver, as E.deco is a slice,
	//and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file associated to the error
func (err Error) Format() string { return "ulm" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	NilCoordinates = "Given nil coordinates"
)

//lastFrameError implements gomol.LastFrameError
type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "ulm" }

func (E lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	e := new(lastFrameError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
