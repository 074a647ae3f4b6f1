/*
 * codec.go, part of gomol.
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

//codec.go is the binary layout codec of the archive format: it turns Values
//into self-delimiting tagged bytes and back. It knows nothing about frames or
//files; everything here is a pure transform on byte slices. All multi-byte
//quantities are little-endian, as recorded once in the archive header.

package ulm

import (
	"encoding/binary"
	"math"
)

//The value tags. A tag always precedes the bytes of the value it describes,
//and every compound value carries a count, so decoding never depends on
//context.
const (
	tagNull  byte = 0x01
	tagFalse byte = 0x02
	tagTrue  byte = 0x03
	tagInt   byte = 0x04
	tagFloat byte = 0x05
	tagStr   byte = 0x06
	tagList  byte = 0x07
	tagDict  byte = 0x08
	tagArray byte = 0x09
)

func appendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendUint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

func appendString(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

//appendValue encodes v at the end of b and returns the extended slice.
//Array values are encoded as references: dtype, shape, payload offset and
//byte length. The payload bytes themselves are not part of the encoding.
func appendValue(b []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(b, tagNull)
	case KindBool:
		if v.b {
			return append(b, tagTrue)
		}
		return append(b, tagFalse)
	case KindInt:
		b = append(b, tagInt)
		return appendUint64(b, uint64(v.i))
	case KindFloat:
		b = append(b, tagFloat)
		return appendUint64(b, math.Float64bits(v.f))
	case KindString:
		b = append(b, tagStr)
		return appendString(b, v.s)
	case KindList:
		b = append(b, tagList)
		b = appendUint32(b, uint32(len(v.list)))
		for _, e := range v.list {
			b = appendValue(b, e)
		}
		return b
	case KindDict:
		b = append(b, tagDict)
		b = appendUint32(b, uint32(v.dict.Len()))
		for _, k := range v.dict.keys {
			b = appendString(b, k)
			b = appendValue(b, v.dict.m[k])
		}
		return b
	case KindArray:
		b = append(b, tagArray)
		return appendArrayRef(b, v.arr)
	}
	panic("ulm: encoding a value of invalid kind")
}

//appendArrayRef encodes the header of an array: dtype code, shape, and the
//location of its payload in the file. It is fixed-width for a given number of
//dimensions, so an encoded attribute block keeps its size when the writer
//patches payload offsets in.
func appendArrayRef(b []byte, a *ArrayRef) []byte {
	b = append(b, byte(a.Dtype))
	b = append(b, byte(len(a.Shape)))
	for _, d := range a.Shape {
		b = appendUint64(b, uint64(d))
	}
	b = appendUint64(b, uint64(a.Offset))
	return appendUint64(b, uint64(a.Length))
}

//Decoding. The cursor convention of the whole package: every decode function
//takes the buffer and a position, and returns the decoded item plus the
//position one past it.

func decodeUint32(b []byte, pos int) (uint32, int, error) {
	if pos+4 > len(b) {
		return 0, pos, ulmError(ErrTruncated, "", "buffer ends inside a 4-byte integer")
	}
	return binary.LittleEndian.Uint32(b[pos:]), pos + 4, nil
}

func decodeUint64(b []byte, pos int) (uint64, int, error) {
	if pos+8 > len(b) {
		return 0, pos, ulmError(ErrTruncated, "", "buffer ends inside an 8-byte integer")
	}
	return binary.LittleEndian.Uint64(b[pos:]), pos + 8, nil
}

func decodeString(b []byte, pos int) (string, int, error) {
	n, pos, err := decodeUint32(b, pos)
	if err != nil {
		return "", pos, err
	}
	if pos+int(n) > len(b) {
		return "", pos, ulmError(ErrTruncated, "", "buffer ends inside a %d-byte string", n)
	}
	return string(b[pos : pos+int(n)]), pos + int(n), nil
}

//decodeValue decodes one Value starting at pos.
func decodeValue(b []byte, pos int) (Value, int, error) {
	if pos >= len(b) {
		return Value{}, pos, ulmError(ErrTruncated, "", "buffer ends where a value tag was expected")
	}
	tag := b[pos]
	pos++
	switch tag {
	case tagNull:
		return Null(), pos, nil
	case tagFalse:
		return Bool(false), pos, nil
	case tagTrue:
		return Bool(true), pos, nil
	case tagInt:
		u, pos, err := decodeUint64(b, pos)
		return Int(int64(u)), pos, err
	case tagFloat:
		u, pos, err := decodeUint64(b, pos)
		return Float(math.Float64frombits(u)), pos, err
	case tagStr:
		s, pos, err := decodeString(b, pos)
		return Str(s), pos, err
	case tagList:
		n, pos, err := decodeUint32(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		elems := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			var e Value
			e, pos, err = decodeValue(b, pos)
			if err != nil {
				return Value{}, pos, err
			}
			elems = append(elems, e)
		}
		return List(elems...), pos, nil
	case tagDict:
		n, pos, err := decodeUint32(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		d := NewDict()
		for i := uint32(0); i < n; i++ {
			var k string
			var v Value
			k, pos, err = decodeString(b, pos)
			if err != nil {
				return Value{}, pos, err
			}
			v, pos, err = decodeValue(b, pos)
			if err != nil {
				return Value{}, pos, err
			}
			d.Set(k, v)
		}
		return DictValue(d), pos, nil
	case tagArray:
		ref, pos, err := decodeArrayRef(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return arrayValue(ref), pos, nil
	}
	return Value{}, pos, ulmError(ErrFormat, "", "unknown value tag 0x%02x", tag)
}

func decodeArrayRef(b []byte, pos int) (*ArrayRef, int, error) {
	if pos+2 > len(b) {
		return nil, pos, ulmError(ErrTruncated, "", "buffer ends inside an array header")
	}
	dtype := Dtype(b[pos])
	if dtype.Size() == 0 {
		return nil, pos, ulmError(ErrFormat, "", "unknown or unsupported dtype code %d", b[pos])
	}
	ndim := int(b[pos+1])
	pos += 2
	shape := make([]int, ndim)
	var err error
	var u uint64
	for i := 0; i < ndim; i++ {
		u, pos, err = decodeUint64(b, pos)
		if err != nil {
			return nil, pos, err
		}
		if u == 0 {
			return nil, pos, ulmError(ErrFormat, "", "array dimension %d is zero", i)
		}
		shape[i] = int(u)
	}
	ref := &ArrayRef{Dtype: dtype, Shape: shape}
	u, pos, err = decodeUint64(b, pos)
	if err != nil {
		return nil, pos, err
	}
	ref.Offset = int64(u)
	u, pos, err = decodeUint64(b, pos)
	if err != nil {
		return nil, pos, err
	}
	ref.Length = int64(u)
	return ref, pos, nil
}

//Array payloads are raw little-endian elements, encoded and decoded in bulk.

func appendFloat64s(b []byte, data []float64) []byte {
	for _, f := range data {
		b = appendUint64(b, math.Float64bits(f))
	}
	return b
}

func appendInt64s(b []byte, data []int64) []byte {
	for _, i := range data {
		b = appendUint64(b, uint64(i))
	}
	return b
}

func decodeFloat64s(b []byte, out []float64) {
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
}

func decodeInt64s(b []byte, out []int64) {
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
}
