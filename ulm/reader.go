/*
 * reader.go, part of gomol.
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
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//Reader reads an archive. At open time it follows the index chain and keeps a
//flat list of frame records; attribute blocks are decoded lazily per frame
//and arrays are only ever touched through proxies. The frame count is a
//snapshot: frames appended by someone else after the open are not visible
//until the archive is reopened. Several Readers may safely read the same
//completed archive at once, each with its own handle.
type Reader struct {
	f        *os.File
	filename string
	frames   []*frameIndex
	sel      int //frame targeted by the direct attribute accessors
}

//Open opens an archive for reading. The direct attribute accessors target
//frame 0; any frame stays reachable through Frame(i).
func Open(name string) (*Reader, error) {
	r, err := open(name)
	if err != nil {
		return nil, err
	}
	r.sel = 0
	return r, nil
}

//OpenIndex is Open with the direct attribute accessors targeting frame index
//instead of frame 0.
func OpenIndex(name string, index int) (*Reader, error) {
	r, err := open(name)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(r.frames) {
		r.Close()
		return nil, ulmError(ErrRange, name, "frame %d of %d requested", index, len(r.frames))
	}
	r.sel = index
	return r, nil
}

func open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(f, name)
	if err != nil {
		f.Close()
		return nil, err
	}
	frames, err := readChain(f, h, name)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, filename: name, frames: frames}, nil
}

//Close releases the file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

//NItems returns the number of frames visible through the index chain.
func (r *Reader) NItems() int {
	return len(r.frames)
}

//Frame returns a view scoped to frame i.
func (r *Reader) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(r.frames) {
		return nil, ulmError(ErrRange, r.filename, "frame %d of %d requested", i, len(r.frames))
	}
	return &Frame{r: r, i: i}, nil
}

//Frames returns views of all frames in creation order. The views are cheap;
//nothing is decoded until a view is asked for a value.
func (r *Reader) Frames() []*Frame {
	fs := make([]*Frame, len(r.frames))
	for i := range r.frames {
		fs[i] = &Frame{r: r, i: i}
	}
	return fs
}

func (r *Reader) selected() (*Frame, error) {
	if len(r.frames) == 0 {
		return nil, ulmError(ErrRange, r.filename, "the archive has no frames")
	}
	return &Frame{r: r, i: r.sel}, nil
}

//The attribute accessors of the Reader itself delegate to the targeted frame
//(frame 0, unless OpenIndex said otherwise).

//Has reports whether key (a dotted path, e.g. "d.h") resolves to a value in
//the targeted frame. Only structure is decoded, never array payloads.
func (r *Reader) Has(key string) bool {
	fr, err := r.selected()
	if err != nil {
		return false
	}
	return fr.Has(key)
}

//Get returns the value under key in the targeted frame.
func (r *Reader) Get(key string) (Value, error) {
	fr, err := r.selected()
	if err != nil {
		return Value{}, err
	}
	return fr.Get(key)
}

//Int returns the integer under key in the targeted frame.
func (r *Reader) Int(key string) (int64, error) {
	fr, err := r.selected()
	if err != nil {
		return 0, err
	}
	return fr.Int(key)
}

//Float returns the float under key in the targeted frame.
func (r *Reader) Float(key string) (float64, error) {
	fr, err := r.selected()
	if err != nil {
		return 0, err
	}
	return fr.Float(key)
}

//Str returns the string under key in the targeted frame.
func (r *Reader) Str(key string) (string, error) {
	fr, err := r.selected()
	if err != nil {
		return "", err
	}
	return fr.Str(key)
}

//Bool returns the boolean under key in the targeted frame.
func (r *Reader) Bool(key string) (bool, error) {
	fr, err := r.selected()
	if err != nil {
		return false, err
	}
	return fr.Bool(key)
}

//Dict returns the nested mapping under key in the targeted frame.
func (r *Reader) Dict(key string) (*Dict, error) {
	fr, err := r.selected()
	if err != nil {
		return nil, err
	}
	return fr.Dict(key)
}

//List returns the list under key in the targeted frame.
func (r *Reader) List(key string) ([]Value, error) {
	fr, err := r.selected()
	if err != nil {
		return nil, err
	}
	return fr.List(key)
}

//Proxy returns a lazy array handle for key in the targeted frame.
func (r *Reader) Proxy(key string) (*ArrayProxy, error) {
	fr, err := r.selected()
	if err != nil {
		return nil, err
	}
	return fr.Proxy(key)
}

//attrsOf decodes (once) and returns the attribute block of frame i.
func (r *Reader) attrsOf(i int) (*Dict, error) {
	fi := r.frames[i]
	if fi.attrs != nil {
		return fi.attrs, nil
	}
	b := make([]byte, fi.attrLen)
	if _, err := r.f.ReadAt(b, fi.attrOffset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ulmError(ErrTruncated, r.filename, "file ends inside the attribute block of frame %d", i)
		}
		return nil, err
	}
	v, _, err := decodeValue(b, 0)
	if err != nil {
		return nil, err
	}
	d, ok := v.Dict()
	if !ok {
		return nil, ulmError(ErrFormat, r.filename, "attribute block of frame %d is a %v, not a dict", i, v.Kind())
	}
	fi.attrs = d
	return d, nil
}

//Frame is a view scoped to one frame of an archive.
type Frame struct {
	r *Reader
	i int
}

//Index returns the frame's position in the archive.
func (fr *Frame) Index() int { return fr.i }

//Keys returns the frame's top-level keys in write order: attributes first,
//then incrementally-filled arrays.
func (fr *Frame) Keys() ([]string, error) {
	d, err := fr.r.attrsOf(fr.i)
	if err != nil {
		return nil, err
	}
	keys := d.Keys()
	for _, e := range fr.r.frames[fr.i].arrays {
		keys = append(keys, e.key)
	}
	return keys, nil
}

//Get resolves a dotted key path ("y", "d.h") within the frame and returns its
//value. Arrays come back as array-kind values; use Proxy to read their data.
func (fr *Frame) Get(key string) (Value, error) {
	d, err := fr.r.attrsOf(fr.i)
	if err != nil {
		return Value{}, err
	}
	segs := strings.Split(key, ".")
	v, ok := d.Get(segs[0])
	if !ok {
		found := false
		for i := range fr.r.frames[fr.i].arrays {
			e := &fr.r.frames[fr.i].arrays[i]
			if e.key == segs[0] {
				v = arrayValue(&e.ref)
				found = true
				break
			}
		}
		if !found {
			return Value{}, ulmError(ErrKeyNotFound, fr.r.filename, "no key %q in frame %d", segs[0], fr.i)
		}
	}
	for _, seg := range segs[1:] {
		sub, ok := v.Dict()
		if !ok {
			return Value{}, ulmError(ErrKeyNotFound, fr.r.filename, "path %q runs into a %v in frame %d", key, v.Kind(), fr.i)
		}
		v, ok = sub.Get(seg)
		if !ok {
			return Value{}, ulmError(ErrKeyNotFound, fr.r.filename, "no key %q in frame %d", key, fr.i)
		}
	}
	return v, nil
}

//Has reports whether the dotted key path resolves to a value in the frame.
func (fr *Frame) Has(key string) bool {
	_, err := fr.Get(key)
	return err == nil
}

//Int returns the integer under key.
func (fr *Frame) Int(key string) (int64, error) {
	v, err := fr.Get(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.Int()
	if !ok {
		return 0, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not an int", key, fr.i, v.Kind())
	}
	return i, nil
}

//Float returns the float under key.
func (fr *Frame) Float(key string) (float64, error) {
	v, err := fr.Get(key)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not a float", key, fr.i, v.Kind())
	}
	return f, nil
}

//Str returns the string under key.
func (fr *Frame) Str(key string) (string, error) {
	v, err := fr.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not a string", key, fr.i, v.Kind())
	}
	return s, nil
}

//Bool returns the boolean under key.
func (fr *Frame) Bool(key string) (bool, error) {
	v, err := fr.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not a bool", key, fr.i, v.Kind())
	}
	return b, nil
}

//Dict returns the nested mapping under key.
func (fr *Frame) Dict(key string) (*Dict, error) {
	v, err := fr.Get(key)
	if err != nil {
		return nil, err
	}
	d, ok := v.Dict()
	if !ok {
		return nil, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not a dict", key, fr.i, v.Kind())
	}
	return d, nil
}

//List returns the list under key.
func (fr *Frame) List(key string) ([]Value, error) {
	v, err := fr.Get(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.List()
	if !ok {
		return nil, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not a list", key, fr.i, v.Kind())
	}
	return l, nil
}

//Proxy returns a lazy handle to the array under the dotted key path. The
//handle reads only the byte ranges asked of it, never the whole payload.
func (fr *Frame) Proxy(key string) (*ArrayProxy, error) {
	v, err := fr.Get(key)
	if err != nil {
		return nil, err
	}
	ref, ok := v.Array()
	if !ok {
		return nil, ulmError(ErrKeyNotFound, fr.r.filename, "key %q in frame %d holds a %v, not an array", key, fr.i, v.Kind())
	}
	return &ArrayProxy{f: fr.r.f, filename: fr.r.filename, key: key, ref: *ref}, nil
}

//ArrayProxy is a lazy, range-readable handle to one array's payload bytes.
type ArrayProxy struct {
	f        *os.File
	filename string
	key      string
	ref      ArrayRef
}

//Dtype returns the element type of the array.
func (p *ArrayProxy) Dtype() Dtype { return p.ref.Dtype }

//Shape returns a copy of the array's shape.
func (p *ArrayProxy) Shape() []int {
	s := make([]int, len(p.ref.Shape))
	copy(s, p.ref.Shape)
	return s
}

//Len returns the leading dimension of the array.
func (p *ArrayProxy) Len() int { return p.ref.NRows() }

func (p *ArrayProxy) rangeBytes(a, b int) ([]byte, error) {
	if a < 0 || b < a || b > p.ref.NRows() {
		return nil, ulmError(ErrRange, p.filename, "rows [%d:%d] of array %q with %d rows", a, b, p.key, p.ref.NRows())
	}
	rowBytes := int64(p.ref.RowSize() * p.ref.Dtype.Size())
	buf := make([]byte, int64(b-a)*rowBytes)
	if len(buf) == 0 {
		return buf, nil
	}
	if _, err := p.f.ReadAt(buf, p.ref.Offset+int64(a)*rowBytes); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ulmError(ErrTruncated, p.filename, "file ends inside the payload of array %q", p.key)
		}
		return nil, err
	}
	return buf, nil
}

//Float64s reads rows [a:b) of a float64 array, flattened row after row.
func (p *ArrayProxy) Float64s(a, b int) ([]float64, error) {
	if p.ref.Dtype != DtypeFloat64 {
		return nil, ulmError(ErrShape, p.filename, "array %q holds %v, read as float64", p.key, p.ref.Dtype)
	}
	buf, err := p.rangeBytes(a, b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(buf)/8)
	decodeFloat64s(buf, out)
	return out, nil
}

//Int64s reads rows [a:b) of an int64 array, flattened row after row.
func (p *ArrayProxy) Int64s(a, b int) ([]int64, error) {
	if p.ref.Dtype != DtypeInt64 {
		return nil, ulmError(ErrShape, p.filename, "array %q holds %v, read as int64", p.key, p.ref.Dtype)
	}
	buf, err := p.rangeBytes(a, b)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(buf)/8)
	decodeInt64s(buf, out)
	return out, nil
}

//AllFloat64s reads the whole float64 array, flattened.
func (p *ArrayProxy) AllFloat64s() ([]float64, error) {
	return p.Float64s(0, p.ref.NRows())
}

//AllInt64s reads the whole int64 array, flattened.
func (p *ArrayProxy) AllInt64s() ([]int64, error) {
	return p.Int64s(0, p.ref.NRows())
}

//Dense reads a 2-dimensional float64 array into a gonum matrix.
func (p *ArrayProxy) Dense() (*mat.Dense, error) {
	if len(p.ref.Shape) != 2 {
		return nil, ulmError(ErrShape, p.filename, "array %q has %d dimensions, Dense needs 2", p.key, len(p.ref.Shape))
	}
	data, err := p.AllFloat64s()
	if err != nil {
		return nil, err
	}
	return mat.NewDense(p.ref.Shape[0], p.ref.Shape[1], data), nil
}
