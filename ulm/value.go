/*
 * value.go, part of gomol.
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

	"gonum.org/v1/gonum/mat"
)

//Kind identifies what a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	}
	return "invalid"
}

//Dtype is the element type of an array.
type Dtype uint8

const (
	DtypeInt64   Dtype = 1
	DtypeFloat64 Dtype = 2
	//codes 3-5 are reserved for int32, float32 and uint8, which the format
	//defines but this implementation does not write yet.
)

//Size returns the size in bytes of one element of the dtype.
func (d Dtype) Size() int {
	switch d {
	case DtypeInt64, DtypeFloat64:
		return 8
	}
	return 0
}

func (d Dtype) String() string {
	switch d {
	case DtypeInt64:
		return "int64"
	case DtypeFloat64:
		return "float64"
	}
	return "invalid"
}

//ArrayRef is a lazy, offset-addressed reference to array payload bytes within
//an archive. On the write side, before the payload has a home in the file, it
//can instead carry the data inline (f64/i64) or a streaming source (src),
//which the writer drains when the frame is flushed.
type ArrayRef struct {
	Dtype  Dtype
	Shape  []int
	Offset int64
	Length int64
	//write-side only:
	f64       []float64
	i64       []int64
	src       io.ReaderAt
	srcOffset int64
}

//NRows returns the leading dimension of the array.
func (a *ArrayRef) NRows() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

//RowSize returns the number of elements in one leading-dimension row.
func (a *ArrayRef) RowSize() int {
	n := 1
	for _, d := range a.Shape[1:] {
		n *= d
	}
	return n
}

//NElems returns the total number of elements in the array.
func (a *ArrayRef) NElems() int {
	return a.NRows() * a.RowSize()
}

//Value is the tagged union stored under each key of a frame: a scalar, a
//string, a list, an ordered dict of more Values, or an array reference.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	dict *Dict
	arr  *ArrayRef
}

//Constructors

//Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

//Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

//Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

//Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

//Str returns a string Value.
func Str(s string) Value { return Value{kind: KindString, s: s} }

//List returns a list Value with the given elements.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

//DictValue wraps an ordered Dict as a Value.
func DictValue(d *Dict) Value { return Value{kind: KindDict, dict: d} }

//Floats returns an array Value carrying float64 data inline. If no shape is
//given, the array is one-dimensional. The product of the shape must match the
//data length; that is checked when the value is written.
func Floats(data []float64, shape ...int) Value {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	return Value{kind: KindArray, arr: &ArrayRef{Dtype: DtypeFloat64, Shape: shape, f64: data}}
}

//Ints returns an array Value carrying int64 data inline, as Floats does for
//float64 data.
func Ints(data []int64, shape ...int) Value {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	return Value{kind: KindArray, arr: &ArrayRef{Dtype: DtypeInt64, Shape: shape, i64: data}}
}

//FromDense returns a 2-dimensional float64 array Value with the contents of
//the given gonum matrix.
func FromDense(m *mat.Dense) Value {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return Floats(data, r, c)
}

func arrayValue(ref *ArrayRef) Value { return Value{kind: KindArray, arr: ref} }

//Accessors. Each returns the payload and whether the Value is of that kind.

//Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

//Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

//Int returns the integer payload.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

//Float returns the floating point payload.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

//Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

//List returns the list payload.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

//Dict returns the dict payload.
func (v Value) Dict() (*Dict, bool) { return v.dict, v.kind == KindDict }

//Array returns the array reference payload.
func (v Value) Array() (*ArrayRef, bool) { return v.arr, v.kind == KindArray }

//Equal reports whether two values are deeply equal. Arrays compare by dtype
//and shape only; their payloads live on disk and are compared through proxies.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == w.b
	case KindInt:
		return v.i == w.i
	case KindFloat:
		return v.f == w.f
	case KindString:
		return v.s == w.s
	case KindList:
		if len(v.list) != len(w.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(w.list[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if v.dict.Len() != w.dict.Len() {
			return false
		}
		for _, k := range v.dict.Keys() {
			wv, ok := w.dict.Get(k)
			if !ok {
				return false
			}
			vv, _ := v.dict.Get(k)
			if !vv.Equal(wv) {
				return false
			}
		}
		return true
	case KindArray:
		if v.arr.Dtype != w.arr.Dtype || len(v.arr.Shape) != len(w.arr.Shape) {
			return false
		}
		for i := range v.arr.Shape {
			if v.arr.Shape[i] != w.arr.Shape[i] {
				return false
			}
		}
		return true
	}
	return false
}

//Dict is a string-keyed mapping that remembers insertion order. Frames keep
//their keys in the order they were written, so the plain Go map is not enough.
type Dict struct {
	keys []string
	m    map[string]Value
}

//NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{m: map[string]Value{}}
}

//DictOf builds a Dict from alternating key, value pairs. It panics on odd
//argument counts or non-string keys, as it is meant for literals.
func DictOf(pairs ...interface{}) *Dict {
	if len(pairs)%2 != 0 {
		panic("ulm.DictOf: odd number of arguments")
	}
	d := NewDict()
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic("ulm.DictOf: key is not a string")
		}
		v, ok := pairs[i+1].(Value)
		if !ok {
			panic("ulm.DictOf: value is not a ulm.Value")
		}
		d.Set(k, v)
	}
	return d
}

//Set stores v under key, keeping the original insertion position if the key
//was already present.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

//Get returns the value under key and whether it was present.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

//Keys returns the keys in insertion order. The slice is a copy.
func (d *Dict) Keys() []string {
	k := make([]string, len(d.keys))
	copy(k, d.keys)
	return k
}

//Len returns the number of keys in the dict.
func (d *Dict) Len() int { return len(d.keys) }
