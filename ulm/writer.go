/*
 * writer.go, part of gomol.
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

	"gonum.org/v1/gonum/mat"
)

const copyChunk = 1 << 16 //bytes moved per step when streaming array payloads

//Writer writes or appends frames to an archive. Scalar attributes of the
//current frame are buffered until the frame's attribute block is flushed,
//which happens at the first array declaration or at Sync, whichever comes
//first. A Writer owns its file handle exclusively; concurrent writers on the
//same path corrupt the archive (this is documented, not enforced).
type Writer struct {
	f        *os.File
	filename string
	pos      int64 //next byte to be written
	nitems   int   //frames already committed
	lastIdx  int64 //offset of the last committed index record, 0 if none
	//state of the current, not yet synced frame:
	attrs       *Dict
	attrFlushed bool
	attrOffset  int64
	attrLen     int64
	arrays      []arrayEntry
	cur         *fillState
	dirty       bool
	closed      bool
}

//fillState tracks the incremental fill of the most recently declared array.
type fillState struct {
	idx  int //index into Writer.arrays
	rows int //leading-dimension rows filled so far
}

func newWriter(f *os.File, name string) *Writer {
	return &Writer{f: f, filename: name, attrs: NewDict()}
}

//Create opens a fresh archive for writing. It fails if the file already
//exists; use CreateOverwrite to truncate an existing file instead.
func Create(name string) (*Writer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return startArchive(f, name)
}

//CreateOverwrite opens a fresh archive for writing, truncating any previous
//file under the same name.
func CreateOverwrite(name string) (*Writer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	return startArchive(f, name)
}

func startArchive(f *os.File, name string) (*Writer, error) {
	w := newWriter(f, name)
	if _, err := f.WriteAt(encodeHeader(header{}), 0); err != nil {
		f.Close()
		return nil, err
	}
	w.pos = headerSize
	return w, nil
}

//Append opens an existing archive and gets ready to add new frames after the
//last complete one. Existing frames are never rewritten; any unreachable
//bytes left behind the last complete index record (e.g. by a crashed writer)
//are dropped.
func Append(name string) (*Writer, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(f, name)
	if err != nil {
		f.Close()
		return nil, err
	}
	w := newWriter(f, name)
	w.nitems = h.nframes
	w.lastIdx = h.lastIndex
	w.pos = headerSize
	if h.nframes > 0 {
		fi, err := readIndex(f, h.lastIndex, name)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.pos = fi.end
	}
	if err := f.Truncate(w.pos); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

//NItems returns the number of frames already committed to the archive. The
//frame currently being buffered does not count until Sync.
func (w *Writer) NItems() int {
	return w.nitems
}

//Write stores v under key in the current frame. Scalars, strings, lists,
//dicts and in-memory arrays (Floats, Ints, FromDense) are all fine; arrays
//meant to be filled incrementally go through AddArray/Fill instead. Write
//must come before any array declaration of the frame: once the attribute
//block is flushed, adding attributes is a sequence error.
func (w *Writer) Write(key string, v Value) error {
	if w.closed {
		return ulmError(ErrSequence, w.filename, "write on a closed writer")
	}
	if w.attrFlushed {
		return ulmError(ErrSequence, w.filename, "attribute %q written after the frame's attribute block was flushed", key)
	}
	if err := w.validate(key, v); err != nil {
		return err
	}
	w.attrs.Set(key, v)
	w.dirty = true
	return nil
}

//validate walks a value tree checking that every part of it can be encoded.
func (w *Writer) validate(key string, v Value) error {
	switch v.Kind() {
	case KindNull, KindBool, KindInt, KindFloat, KindString:
		return nil
	case KindList:
		l, _ := v.List()
		for _, e := range l {
			if err := w.validate(key, e); err != nil {
				return err
			}
		}
		return nil
	case KindDict:
		d, _ := v.Dict()
		for _, k := range d.Keys() {
			e, _ := d.Get(k)
			if err := w.validate(key+"."+k, e); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		a, _ := v.Array()
		n := 1
		for _, d := range a.Shape {
			if d <= 0 {
				return ulmError(ErrShape, w.filename, "array %q has non-positive dimension %d", key, d)
			}
			n *= d
		}
		switch {
		case a.f64 != nil:
			if a.Dtype != DtypeFloat64 || len(a.f64) != n {
				return ulmError(ErrShape, w.filename, "array %q: %d float64 values for shape %v", key, len(a.f64), a.Shape)
			}
		case a.i64 != nil:
			if a.Dtype != DtypeInt64 || len(a.i64) != n {
				return ulmError(ErrShape, w.filename, "array %q: %d int64 values for shape %v", key, len(a.i64), a.Shape)
			}
		case a.src != nil:
			//streamed during flush; nothing to check here
		default:
			return ulmError(ErrShape, w.filename, "array %q carries no data", key)
		}
		return nil
	}
	return ulmError(ErrShape, w.filename, "value under %q has invalid kind", key)
}

//flushAttrs commits the attribute block of the current frame and the payloads
//of the in-memory arrays buried in it. The block is encoded twice: once to
//learn its size (array references are fixed-width, so patching offsets in
//does not move anything), then again with the payload offsets resolved.
func (w *Writer) flushAttrs() error {
	if w.attrFlushed {
		return nil
	}
	var inline []*ArrayRef
	collectArrays(DictValue(w.attrs), &inline)
	b := appendValue(nil, DictValue(w.attrs))
	attrOffset := w.pos
	off := attrOffset + int64(len(b))
	for _, ref := range inline {
		ref.Length = int64(ref.NElems() * ref.Dtype.Size())
		ref.Offset = off
		off += ref.Length
	}
	if len(inline) > 0 {
		b = appendValue(b[:0], DictValue(w.attrs))
	}
	if _, err := w.f.WriteAt(b, attrOffset); err != nil {
		return err
	}
	w.pos = attrOffset + int64(len(b))
	for _, ref := range inline {
		if err := w.writePayload(ref); err != nil {
			return err
		}
	}
	w.attrOffset = attrOffset
	w.attrLen = int64(len(b))
	w.attrFlushed = true
	return nil
}

func collectArrays(v Value, out *[]*ArrayRef) {
	switch v.Kind() {
	case KindList:
		l, _ := v.List()
		for _, e := range l {
			collectArrays(e, out)
		}
	case KindDict:
		d, _ := v.Dict()
		for _, k := range d.keys {
			collectArrays(d.m[k], out)
		}
	case KindArray:
		a, _ := v.Array()
		*out = append(*out, a)
	}
}

//writePayload writes the bytes of an in-memory or streamed array at its
//assigned offset, advancing the write position.
func (w *Writer) writePayload(ref *ArrayRef) error {
	switch {
	case ref.f64 != nil:
		b := appendFloat64s(make([]byte, 0, len(ref.f64)*8), ref.f64)
		if _, err := w.f.WriteAt(b, w.pos); err != nil {
			return err
		}
		w.pos += int64(len(b))
	case ref.i64 != nil:
		b := appendInt64s(make([]byte, 0, len(ref.i64)*8), ref.i64)
		if _, err := w.f.WriteAt(b, w.pos); err != nil {
			return err
		}
		w.pos += int64(len(b))
	case ref.src != nil:
		if err := w.streamFrom(ref.src, ref.srcOffset, ref.Length); err != nil {
			return err
		}
	}
	return nil
}

//streamFrom copies length payload bytes from a source (another archive) to
//the current write position in bounded chunks.
func (w *Writer) streamFrom(src io.ReaderAt, srcOff, length int64) error {
	buf := make([]byte, copyChunk)
	for length > 0 {
		n := int64(len(buf))
		if n > length {
			n = length
		}
		if _, err := src.ReadAt(buf[:n], srcOff); err != nil {
			return err
		}
		if _, err := w.f.WriteAt(buf[:n], w.pos); err != nil {
			return err
		}
		w.pos += n
		srcOff += n
		length -= n
	}
	return nil
}

//AddArray declares an array of the given dtype and shape in the current
//frame, to be filled incrementally with Fill. Declaring flushes the frame's
//attribute block, so all Write calls of the frame must come first. A second
//array may be declared only once the previous one is completely filled.
func (w *Writer) AddArray(key string, dtype Dtype, shape ...int) error {
	if w.closed {
		return ulmError(ErrSequence, w.filename, "AddArray on a closed writer")
	}
	if w.cur != nil && !w.curFull() {
		return ulmError(ErrSequence, w.filename, "array %q declared while %q is not completely filled",
			key, w.arrays[w.cur.idx].key)
	}
	if dtype.Size() == 0 {
		return ulmError(ErrShape, w.filename, "array %q: unsupported dtype %d", key, dtype)
	}
	if len(shape) == 0 {
		return ulmError(ErrShape, w.filename, "array %q declared with an empty shape", key)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return ulmError(ErrShape, w.filename, "array %q has non-positive dimension %d", key, d)
		}
		n *= d
	}
	if _, ok := w.attrs.Get(key); ok {
		return ulmError(ErrSequence, w.filename, "key %q already written in this frame", key)
	}
	for i := range w.arrays {
		if w.arrays[i].key == key {
			return ulmError(ErrSequence, w.filename, "array %q already declared in this frame", key)
		}
	}
	if err := w.flushAttrs(); err != nil {
		return err
	}
	sh := make([]int, len(shape))
	copy(sh, shape)
	w.arrays = append(w.arrays, arrayEntry{key: key, ref: ArrayRef{
		Dtype:  dtype,
		Shape:  sh,
		Offset: w.pos,
		Length: int64(n * dtype.Size()),
	}})
	w.cur = &fillState{idx: len(w.arrays) - 1}
	w.dirty = true
	return nil
}

func (w *Writer) curFull() bool {
	return w.cur.rows == w.arrays[w.cur.idx].ref.NRows()
}

//fillTarget validates a fill of nvals elements of the given dtype against the
//array currently being filled, and returns the number of rows it covers.
func (w *Writer) fillTarget(dtype Dtype, nvals int) (int, error) {
	if w.closed {
		return 0, ulmError(ErrSequence, w.filename, "fill on a closed writer")
	}
	if w.cur == nil {
		return 0, ulmError(ErrSequence, w.filename, "fill with no array declared in this frame")
	}
	e := &w.arrays[w.cur.idx]
	if e.ref.Dtype != dtype {
		return 0, ulmError(ErrShape, w.filename, "array %q holds %v, filled with %v", e.key, e.ref.Dtype, dtype)
	}
	rowsize := e.ref.RowSize()
	if nvals == 0 || nvals%rowsize != 0 {
		return 0, ulmError(ErrShape, w.filename, "array %q: chunk of %d values is not a whole number of %d-value rows",
			e.key, nvals, rowsize)
	}
	nrows := nvals / rowsize
	if w.cur.rows+nrows > e.ref.NRows() {
		return 0, ulmError(ErrOverfill, w.filename, "array %q: %d rows filled, %d more would exceed the declared %d",
			e.key, w.cur.rows, nrows, e.ref.NRows())
	}
	return nrows, nil
}

func (w *Writer) fillBytes(b []byte, nrows int) error {
	if _, err := w.f.WriteAt(b, w.pos); err != nil {
		return err
	}
	w.pos += int64(len(b))
	w.cur.rows += nrows
	return nil
}

//Fill appends whole leading-dimension rows to the float64 array most recently
//declared with AddArray. Chunks must arrive strictly in order; a chunk that
//would exceed the declared shape is an overfill error.
func (w *Writer) Fill(chunk []float64) error {
	nrows, err := w.fillTarget(DtypeFloat64, len(chunk))
	if err != nil {
		return err
	}
	return w.fillBytes(appendFloat64s(make([]byte, 0, len(chunk)*8), chunk), nrows)
}

//FillInts is Fill for int64 arrays.
func (w *Writer) FillInts(chunk []int64) error {
	nrows, err := w.fillTarget(DtypeInt64, len(chunk))
	if err != nil {
		return err
	}
	return w.fillBytes(appendInt64s(make([]byte, 0, len(chunk)*8), chunk), nrows)
}

//FillDense appends the rows of a gonum matrix to the array being filled,
//which must be a 2-dimensional float64 array with the same row width.
func (w *Writer) FillDense(m *mat.Dense) error {
	r, c := m.Dims()
	chunk := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			chunk = append(chunk, m.At(i, j))
		}
	}
	return w.Fill(chunk)
}

//WriteFloats writes a complete float64 array under key in one go; a
//convenience for AddArray followed by a single Fill.
func (w *Writer) WriteFloats(key string, data []float64, shape ...int) error {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	if err := w.AddArray(key, DtypeFloat64, shape...); err != nil {
		return err
	}
	return w.Fill(data)
}

//WriteInts writes a complete int64 array under key in one go.
func (w *Writer) WriteInts(key string, data []int64, shape ...int) error {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	if err := w.AddArray(key, DtypeInt64, shape...); err != nil {
		return err
	}
	return w.FillInts(data)
}

//Sync commits the current frame: attribute block (if not already flushed),
//array payloads, and the frame's index record linked to the previous one.
//The header locator is updated only after all of that is durable, so a crash
//in the middle leaves the archive at its previous complete frame. Sync with
//nothing buffered is a no-op; an incompletely filled array is an error.
func (w *Writer) Sync() error {
	if w.closed {
		return ulmError(ErrSequence, w.filename, "sync on a closed writer")
	}
	if !w.dirty {
		return nil
	}
	if w.cur != nil && !w.curFull() {
		e := &w.arrays[w.cur.idx]
		return ulmError(ErrIncompleteArray, w.filename, "sync with array %q at %d of %d rows",
			e.key, w.cur.rows, e.ref.NRows())
	}
	if err := w.flushAttrs(); err != nil {
		return err
	}
	fi := &frameIndex{
		prev:       w.lastIdx,
		attrOffset: w.attrOffset,
		attrLen:    w.attrLen,
		arrays:     w.arrays,
	}
	rec := encodeIndex(fi)
	idxOffset := w.pos
	if _, err := w.f.WriteAt(rec, idxOffset); err != nil {
		return err
	}
	w.pos = idxOffset + int64(len(rec))
	//payloads and index first, locator strictly after.
	if err := w.f.Sync(); err != nil {
		return err
	}
	if _, err := w.f.WriteAt(encodeHeader(header{nframes: w.nitems + 1, lastIndex: idxOffset}), 0); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.nitems++
	w.lastIdx = idxOffset
	w.attrs = NewDict()
	w.attrFlushed = false
	w.attrOffset = 0
	w.attrLen = 0
	w.arrays = nil
	w.cur = nil
	w.dirty = false
	return nil
}

//Close syncs any pending frame and releases the file handle. A second Close
//is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if w.dirty {
		if err := w.Sync(); err != nil {
			return err
		}
	}
	w.closed = true
	return w.f.Close()
}
