/*
 * interfaces.go, part of gomol.
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

import v3 "github.com/gomolkit/gomol/v3"

// Traj is the interface for any trajectory handle that can be read frame by
// frame. The ulm-backed reader in the traj package implements it.
type Traj interface {

	//Is the trajectory ready to be read?
	Readable() bool

	//Next reads the next frame into output, or discards it if output is nil.
	//If present in the frame, the box/cell vectors are put in box (9 values,
	//one cell vector after the other).
	Next(output *v3.Matrix, box ...[]float64) error

	//Returns the number of atoms per frame
	Len() int
}

// Calculator provides potential energies and forces for a set of cartesian
// coordinates. Implementations are stateless with respect to the coordinates:
// two calls with the same input give the same output. The optimize package
// consumes this interface; the calc package provides simple implementations.
type Calculator interface {

	//Energy returns the potential energy, in the calculator's own units,
	//for the given coordinates.
	Energy(coords *v3.Matrix) (float64, error)

	//Forces puts the forces (negative gradient) for the given coordinates
	//into out, which must have the same shape as coords.
	Forces(coords *v3.Matrix, out *v3.Matrix) error
}

//Errors

// Error is the interface for errors that all gomol packages implement. The
// Decorate method adds information to the error as it travels up the call
// stack, without changing its type or wrapping it: each element of the
// returned slice is the name of one function in the path, optionally followed
// by extra information ("FunctionName: extra info"). Decorate with an empty
// string just returns the current decoration.
type Error interface {
	Error() string
	Decorate(string) []string
}

// FileError is the interface for errors produced while reading or writing the
// on-disk formats handled by gomol (ulm archives, trajectories, databases).
type FileError interface {
	Error
	Critical() bool
	FileName() string
	Format() string
}

// LastFrameError is implemented by the harmless error that signals a normal
// end of trajectory, so callers can filter it with a type switch.
type LastFrameError interface {
	FileError
	NormalLastFrameTermination() //does nothing, just separates this interface from other FileError's
}
