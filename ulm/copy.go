/*
 * copy.go, part of gomol.
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

//Copy streams every frame of the src archive into a freshly created dst
//archive, skipping the keys named in exclude. Excluded keys are qualified
//dotted paths with a leading dot: ".a" excludes the top-level key a, ".d.h"
//the key h inside the mapping d. Frame order and per-frame key order are
//preserved; array payloads move in bounded chunks, never materialized whole.
//
//On any failure the destination is left half-written and must be discarded
//by the caller; writing to a temporary path and renaming on success is the
//usual way to get atomic replacement.
func Copy(src, dst string, exclude ...string) error {
	ex := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		ex[e] = true
	}
	r, err := Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := Create(dst)
	if err != nil {
		return err
	}
	for i := 0; i < r.NItems(); i++ {
		attrs, err := r.attrsOf(i)
		if err != nil {
			w.Close()
			return err
		}
		for _, k := range attrs.Keys() {
			if ex["."+k] {
				continue
			}
			v, _ := attrs.Get(k)
			if err := w.Write(k, exportValue(v, "."+k, ex, r)); err != nil {
				w.Close()
				return err
			}
		}
		for _, e := range r.frames[i].arrays {
			if ex["."+e.key] {
				continue
			}
			if err := w.AddArray(e.key, e.ref.Dtype, e.ref.Shape...); err != nil {
				w.Close()
				return err
			}
			//fill the whole declared array straight from the source file
			if err := w.streamFrom(r.f, e.ref.Offset, e.ref.Length); err != nil {
				w.Close()
				return err
			}
			w.cur.rows = e.ref.NRows()
		}
		//a frame whose every key was excluded still counts: commit it
		//empty, so frame indices in the copy match the source
		w.dirty = true
		if err := w.Sync(); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

//exportValue rebuilds a value read from one archive so it can be written to
//another: excluded paths are dropped from mappings, and arrays become
//streaming references that the destination writer drains from the source
//file when it flushes the frame.
func exportValue(v Value, path string, ex map[string]bool, r *Reader) Value {
	switch v.Kind() {
	case KindDict:
		d, _ := v.Dict()
		nd := NewDict()
		for _, k := range d.Keys() {
			sub := path + "." + k
			if ex[sub] {
				continue
			}
			e, _ := d.Get(k)
			nd.Set(k, exportValue(e, sub, ex, r))
		}
		return DictValue(nd)
	case KindList:
		l, _ := v.List()
		nl := make([]Value, len(l))
		for i, e := range l {
			nl[i] = exportValue(e, path, ex, r)
		}
		return List(nl...)
	case KindArray:
		a, _ := v.Array()
		sh := make([]int, len(a.Shape))
		copy(sh, a.Shape)
		return arrayValue(&ArrayRef{
			Dtype:     a.Dtype,
			Shape:     sh,
			Length:    a.Length,
			src:       r.f,
			srcOffset: a.Offset,
		})
	}
	return v
}
