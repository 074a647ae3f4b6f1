/*
 * errors.go, part of gomol.
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

package ulm

import (
	"errors"
	"fmt"
)

//The error kinds of the package. Every Error returned by ulm wraps exactly one
//of these, so callers can match with errors.Is. Plain I/O failures from the
//filesystem are returned unchanged, not wrapped in any of them.
var (
	//ErrFormat: unrecognized magic, version, byte order or value tag.
	//Fatal, indicates a file that is not a (supported) ulm archive.
	ErrFormat = errors.New("unrecognized or unsupported format")
	//ErrTruncated: the file or buffer is shorter than its metadata claims.
	//Fatal, indicates corruption.
	ErrTruncated = errors.New("truncated data")
	//ErrShape: bad array shape, dtype mismatch, or a chunk that is not a
	//whole number of rows. Writer/reader misuse.
	ErrShape = errors.New("bad array shape or dtype")
	//ErrOverfill: a fill would exceed the declared array shape.
	ErrOverfill = errors.New("fill beyond declared array shape")
	//ErrSequence: an operation arrived out of order, e.g. declaring a new
	//array while the previous one is not completely filled, or writing
	//scalar attributes after the attribute block was flushed.
	ErrSequence = errors.New("operation out of sequence")
	//ErrIncompleteArray: sync with a declared but not completely filled array.
	ErrIncompleteArray = errors.New("declared array not completely filled")
	//ErrKeyNotFound: lookup of a key absent from the targeted frame.
	ErrKeyNotFound = errors.New("key not found")
	//ErrRange: frame number or array row range out of bounds.
	ErrRange = errors.New("index out of range")
)

//Error is the error type for ulm archives. It fulfills gomol.Error and
//gomol.FileError, and unwraps to one of the kind sentinels above.
type Error struct {
	kind     error
	message  string
	filename string //the archive with problems, or empty if none applies.
	deco     []string
	critical bool
}

func ulmError(kind error, filename, format string, args ...interface{}) Error {
	return Error{kind: kind, message: fmt.Sprintf(format, args...), filename: filename, critical: true}
}

func (err Error) Error() string {
	if err.filename == "" {
		return fmt.Sprintf("ulm: %v: %s", err.kind, err.message)
	}
	return fmt.Sprintf("ulm file %s: %v: %s", err.filename, err.kind, err.message)
}

//Unwrap returns the kind sentinel of the error, for errors.Is matching.
func (err Error) Unwrap() error { return err.kind }

//Decorate adds new information to the error
func (E Error) Decorate(deco string) []string {
	//E.deco is a slice, so appending to it is visible through the copies
	//of the error that share it.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the archive associated to the error
func (err Error) FileName() string { return err.filename }

//Format returns the file format associated to the error (always "ulm")
func (err Error) Format() string { return "ulm" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }
