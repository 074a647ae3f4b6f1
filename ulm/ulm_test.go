package ulm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func ones(n int) []float64 {
	f := make([]float64, n)
	for i := range f {
		f[i] = 1
	}
	return f
}

func onesInt(n int) []int64 {
	f := make([]int64, n)
	for i := range f {
		f[i] = 1
	}
	return f
}

//writeScenario builds the reference archive used by several tests:
//frame 0: a={x: ones(2,3)}, y=9, s="abc"; frame 1: s="abc2";
//frame 2: s="abc3", z=ones(7) as int64.
func writeScenario(Te *testing.T, path string) {
	w, err := Create(path)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("a", DictValue(DictOf("x", Floats(ones(6), 2, 3)))); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("y", Int(9)); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("s", Str("abc")); err != nil {
		Te.Fatal(err)
	}
	if err := w.Sync(); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("s", Str("abc2")); err != nil {
		Te.Fatal(err)
	}
	if err := w.Sync(); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("s", Str("abc3")); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("z", Ints(onesInt(7))); err != nil {
		Te.Fatal(err)
	}
	//no explicit sync: Close commits the pending frame.
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
}

func TestScenario(Te *testing.T) {
	fmt.Println("ulm write/read scenario test!")
	path := filepath.Join(Te.TempDir(), "a.ulm")
	writeScenario(Te, path)
	r, err := Open(path)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if r.NItems() != 3 {
		Te.Errorf("got %d frames, want 3", r.NItems())
	}
	if y, err := r.Int("y"); err != nil || y != 9 {
		Te.Errorf("y: got %d (%v), want 9", y, err)
	}
	if s, err := r.Str("s"); err != nil || s != "abc" {
		Te.Errorf("s: got %q (%v), want abc", s, err)
	}
	//the nested array under a.x, read through a lazy proxy
	p, err := r.Proxy("a.x")
	if err != nil {
		Te.Fatal(err)
	}
	if sh := p.Shape(); len(sh) != 2 || sh[0] != 2 || sh[1] != 3 {
		Te.Errorf("a.x shape: %v", sh)
	}
	x, err := p.AllFloat64s()
	if err != nil {
		Te.Fatal(err)
	}
	for i, v := range x {
		if v != 1 {
			Te.Errorf("a.x[%d] = %v, want 1", i, v)
		}
	}
	fr1, err := r.Frame(1)
	if err != nil {
		Te.Fatal(err)
	}
	if s, err := fr1.Str("s"); err != nil || s != "abc2" {
		Te.Errorf("frame 1 s: got %q (%v)", s, err)
	}
	fr2, err := r.Frame(2)
	if err != nil {
		Te.Fatal(err)
	}
	if s, err := fr2.Str("s"); err != nil || s != "abc3" {
		Te.Errorf("frame 2 s: got %q (%v)", s, err)
	}
	pz, err := fr2.Proxy("z")
	if err != nil {
		Te.Fatal(err)
	}
	z, err := pz.AllInt64s()
	if err != nil {
		Te.Fatal(err)
	}
	if len(z) != 7 {
		Te.Fatalf("z has %d elements, want 7", len(z))
	}
	for i, v := range z {
		if v != 1 {
			Te.Errorf("z[%d] = %d, want 1", i, v)
		}
	}
	//frame 0 does not have z, and asking for it says so
	if r.Has("z") {
		Te.Error("frame 0 claims to have z")
	}
	if _, err := r.Get("z"); !errors.Is(err, ErrKeyNotFound) {
		Te.Errorf("frame 0 z lookup gave %v, want ErrKeyNotFound", err)
	}
	if _, err := r.Frame(3); !errors.Is(err, ErrRange) {
		Te.Errorf("frame 3 lookup gave %v, want ErrRange", err)
	}
}

func TestAppend(Te *testing.T) {
	fmt.Println("ulm append test!")
	dir := Te.TempDir()
	path := filepath.Join(dir, "b.ulm")
	writeScenario(Te, path)
	before, err := os.ReadFile(path)
	if err != nil {
		Te.Fatal(err)
	}
	w, err := Append(path)
	if err != nil {
		Te.Fatal(err)
	}
	if w.NItems() != 3 {
		Te.Errorf("append sees %d frames, want 3", w.NItems())
	}
	if err := w.Write("d", DictValue(DictOf("h", List(Int(1), Str("asdf"))))); err != nil {
		Te.Fatal(err)
	}
	if err := w.AddArray("psi", DtypeFloat64, 4, 2); err != nil {
		Te.Fatal(err)
	}
	if err := w.Fill([]float64{1, 1}); err != nil {
		Te.Fatal(err)
	}
	if err := w.Fill([]float64{2, 2}); err != nil {
		Te.Fatal(err)
	}
	if err := w.Fill([]float64{3, 3, 3, 3}); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	//the old frames must be byte-identical, except for the header locator
	after, err := os.ReadFile(path)
	if err != nil {
		Te.Fatal(err)
	}
	if len(after) <= len(before) {
		Te.Fatalf("append did not grow the file: %d vs %d bytes", len(after), len(before))
	}
	for i := headerSize; i < len(before); i++ {
		if after[i] != before[i] {
			Te.Fatalf("append rewrote byte %d of the existing frames", i)
		}
	}
	r, err := OpenIndex(path, 3)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if r.NItems() != 4 {
		Te.Errorf("got %d frames after append, want 4", r.NItems())
	}
	h, err := r.List("d.h")
	if err != nil {
		Te.Fatal(err)
	}
	if len(h) != 2 || !h[0].Equal(Int(1)) || !h[1].Equal(Str("asdf")) {
		Te.Errorf("d.h came back wrong: %v", h)
	}
	//frame 2 is untouched
	fr2, err := r.Frame(2)
	if err != nil {
		Te.Fatal(err)
	}
	pz, err := fr2.Proxy("z")
	if err != nil {
		Te.Fatal(err)
	}
	z, err := pz.AllInt64s()
	if err != nil {
		Te.Fatal(err)
	}
	for i, v := range z {
		if v != 1 {
			Te.Errorf("z[%d] = %d after append, want 1", i, v)
		}
	}
	//the filled array reads back row-sliced
	psi, err := r.Proxy("psi")
	if err != nil {
		Te.Fatal(err)
	}
	rows, err := psi.Float64s(0, 3)
	if err != nil {
		Te.Fatal(err)
	}
	want := []float64{1, 1, 2, 2, 3, 3}
	for i := range want {
		if rows[i] != want[i] {
			Te.Errorf("psi rows 0:3 = %v, want %v", rows, want)
			break
		}
	}
}

func TestIncrementalFillEquivalence(Te *testing.T) {
	dir := Te.TempDir()
	chunked := filepath.Join(dir, "chunked.ulm")
	whole := filepath.Join(dir, "whole.ulm")
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i) * 0.25
	}
	w, err := Create(chunked)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.AddArray("m", DtypeFloat64, 6, 2); err != nil {
		Te.Fatal(err)
	}
	for i := 0; i < 12; i += 4 {
		if err := w.Fill(data[i : i+4]); err != nil {
			Te.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	w, err = Create(whole)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteFloats("m", data, 6, 2); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	for _, path := range []string{chunked, whole} {
		r, err := Open(path)
		if err != nil {
			Te.Fatal(err)
		}
		p, err := r.Proxy("m")
		if err != nil {
			Te.Fatal(err)
		}
		got, err := p.AllFloat64s()
		if err != nil {
			Te.Fatal(err)
		}
		for i := range data {
			if got[i] != data[i] {
				Te.Errorf("%s: m[%d] = %v, want %v", filepath.Base(path), i, got[i], data[i])
			}
		}
		r.Close()
	}
}

func TestLazySlicing(Te *testing.T) {
	path := filepath.Join(Te.TempDir(), "slices.ulm")
	data := make([]float64, 30) //10 rows of 3
	for i := range data {
		data[i] = float64(i*i) * 0.5
	}
	w, err := Create(path)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteFloats("coords", data, 10, 3); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	p, err := r.Proxy("coords")
	if err != nil {
		Te.Fatal(err)
	}
	full, err := p.AllFloat64s()
	if err != nil {
		Te.Fatal(err)
	}
	for a := 0; a <= 10; a++ {
		for b := a; b <= 10; b++ {
			part, err := p.Float64s(a, b)
			if err != nil {
				Te.Fatalf("rows [%d:%d]: %v", a, b, err)
			}
			want := full[a*3 : b*3]
			if len(part) != len(want) {
				Te.Fatalf("rows [%d:%d]: %d values, want %d", a, b, len(part), len(want))
			}
			for i := range want {
				if part[i] != want[i] {
					Te.Fatalf("rows [%d:%d] differ at %d", a, b, i)
				}
			}
		}
	}
	if _, err := p.Float64s(3, 11); !errors.Is(err, ErrRange) {
		Te.Errorf("out of range slice gave %v, want ErrRange", err)
	}
	if _, err := p.Int64s(0, 1); !errors.Is(err, ErrShape) {
		Te.Errorf("wrong-dtype read gave %v, want ErrShape", err)
	}
}

func TestOverfillBoundary(Te *testing.T) {
	w, err := Create(filepath.Join(Te.TempDir(), "over.ulm"))
	if err != nil {
		Te.Fatal(err)
	}
	defer w.Close()
	if err := w.AddArray("psi", DtypeFloat64, 4, 2); err != nil {
		Te.Fatal(err)
	}
	for _, chunk := range [][]float64{{1, 1}, {2, 2}, {3, 3, 4, 4}} {
		if err := w.Fill(chunk); err != nil {
			Te.Fatal(err)
		}
	}
	if err := w.Fill([]float64{5, 5}); !errors.Is(err, ErrOverfill) {
		Te.Errorf("fill past the declared shape gave %v, want ErrOverfill", err)
	}
}

func TestWriterMisuse(Te *testing.T) {
	dir := Te.TempDir()
	path := filepath.Join(dir, "misuse.ulm")
	w, err := Create(path)
	if err != nil {
		Te.Fatal(err)
	}
	//a second Create on the same path must refuse
	if _, err := Create(path); err == nil {
		Te.Error("Create on an existing file did not fail")
	} else if !os.IsExist(err) {
		Te.Errorf("Create on an existing file gave %v", err)
	}
	//fill with nothing declared
	if err := w.Fill([]float64{1}); !errors.Is(err, ErrSequence) {
		Te.Errorf("fill with no array gave %v, want ErrSequence", err)
	}
	if err := w.AddArray("a", DtypeFloat64, 2, 2); err != nil {
		Te.Fatal(err)
	}
	//scalars after the attribute block went out
	if err := w.Write("late", Int(1)); !errors.Is(err, ErrSequence) {
		Te.Errorf("late attribute write gave %v, want ErrSequence", err)
	}
	//a second array while the first is half-filled
	if err := w.Fill([]float64{1, 1}); err != nil {
		Te.Fatal(err)
	}
	if err := w.AddArray("b", DtypeFloat64, 1); !errors.Is(err, ErrSequence) {
		Te.Errorf("early second array gave %v, want ErrSequence", err)
	}
	//sync with the array half-filled
	if err := w.Sync(); !errors.Is(err, ErrIncompleteArray) {
		Te.Errorf("sync with a half-filled array gave %v, want ErrIncompleteArray", err)
	}
	//dtype and row-width misuse
	if err := w.FillInts([]int64{1, 1}); !errors.Is(err, ErrShape) {
		Te.Errorf("int fill of a float array gave %v, want ErrShape", err)
	}
	if err := w.Fill([]float64{1}); !errors.Is(err, ErrShape) {
		Te.Errorf("partial-row fill gave %v, want ErrShape", err)
	}
	//finish the array so Close can commit
	if err := w.Fill([]float64{2, 2}); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Errorf("second Close gave %v, want nil", err)
	}
}

func TestCopyExclude(Te *testing.T) {
	fmt.Println("ulm selective copy test!")
	dir := Te.TempDir()
	src := filepath.Join(dir, "src.ulm")
	dst := filepath.Join(dir, "dst.ulm")
	writeScenario(Te, src)
	if err := Copy(src, dst, ".a"); err != nil {
		Te.Fatal(err)
	}
	r, err := Open(dst)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if r.NItems() != 3 {
		Te.Fatalf("copy has %d frames, want 3", r.NItems())
	}
	if r.Has("a") {
		Te.Error("excluded key a survived the copy")
	}
	if !r.Has("y") {
		Te.Error("key y lost in the copy")
	}
	if y, err := r.Int("y"); err != nil || y != 9 {
		Te.Errorf("copied y: %d (%v)", y, err)
	}
	wantS := []string{"abc", "abc2", "abc3"}
	for i, fr := range r.Frames() {
		s, err := fr.Str("s")
		if err != nil || s != wantS[i] {
			Te.Errorf("frame %d s: %q (%v), want %q", i, s, err, wantS[i])
		}
	}
	fr2, err := r.Frame(2)
	if err != nil {
		Te.Fatal(err)
	}
	pz, err := fr2.Proxy("z")
	if err != nil {
		Te.Fatal(err)
	}
	z, err := pz.AllInt64s()
	if err != nil {
		Te.Fatal(err)
	}
	for i, v := range z {
		if v != 1 {
			Te.Errorf("copied z[%d] = %d, want 1", i, v)
		}
	}
}

func TestCopyNestedExclude(Te *testing.T) {
	dir := Te.TempDir()
	src := filepath.Join(dir, "src.ulm")
	dst := filepath.Join(dir, "dst.ulm")
	w, err := Create(src)
	if err != nil {
		Te.Fatal(err)
	}
	d := DictOf("h", Int(1), "keep", Str("stays"))
	if err := w.Write("d", DictValue(d)); err != nil {
		Te.Fatal(err)
	}
	//an incrementally filled array, to exercise the streamed copy path
	if err := w.AddArray("big", DtypeFloat64, 8, 4); err != nil {
		Te.Fatal(err)
	}
	big := make([]float64, 32)
	for i := range big {
		big[i] = float64(i)
	}
	if err := w.Fill(big); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	if err := Copy(src, dst, ".d.h"); err != nil {
		Te.Fatal(err)
	}
	r, err := Open(dst)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if r.Has("d.h") {
		Te.Error("excluded nested key d.h survived the copy")
	}
	if s, err := r.Str("d.keep"); err != nil || s != "stays" {
		Te.Errorf("d.keep: %q (%v)", s, err)
	}
	p, err := r.Proxy("big")
	if err != nil {
		Te.Fatal(err)
	}
	got, err := p.AllFloat64s()
	if err != nil {
		Te.Fatal(err)
	}
	for i := range big {
		if got[i] != big[i] {
			Te.Errorf("copied big[%d] = %v, want %v", i, got[i], big[i])
		}
	}
}

func TestBadFiles(Te *testing.T) {
	dir := Te.TempDir()
	//not an archive at all
	junk := filepath.Join(dir, "junk.ulm")
	if err := os.WriteFile(junk, []byte("this is not an archive at all, just some text"), 0666); err != nil {
		Te.Fatal(err)
	}
	if _, err := Open(junk); !errors.Is(err, ErrFormat) {
		Te.Errorf("junk file gave %v, want ErrFormat", err)
	}
	//too short for even the header
	short := filepath.Join(dir, "short.ulm")
	if err := os.WriteFile(short, []byte(ulmMagic), 0666); err != nil {
		Te.Fatal(err)
	}
	if _, err := Open(short); !errors.Is(err, ErrTruncated) {
		Te.Errorf("short file gave %v, want ErrTruncated", err)
	}
	//a real archive cut behind the last index record
	cut := filepath.Join(dir, "cut.ulm")
	writeScenario(Te, cut)
	st, err := os.Stat(cut)
	if err != nil {
		Te.Fatal(err)
	}
	if err := os.Truncate(cut, st.Size()-6); err != nil {
		Te.Fatal(err)
	}
	if _, err := Open(cut); !errors.Is(err, ErrTruncated) {
		Te.Errorf("cut file gave %v, want ErrTruncated", err)
	}
	//an index record whose length prefix claims more bytes than the file
	//holds; the reader must refuse it before allocating that much
	huge := filepath.Join(dir, "huge.ulm")
	writeScenario(Te, huge)
	f, err := os.OpenFile(huge, os.O_RDWR, 0)
	if err != nil {
		Te.Fatal(err)
	}
	h, err := readHeader(f, huge)
	if err != nil {
		Te.Fatal(err)
	}
	if _, err := f.WriteAt([]byte{0xff, 0xff, 0xff, 0xff}, h.lastIndex); err != nil {
		Te.Fatal(err)
	}
	if err := f.Close(); err != nil {
		Te.Fatal(err)
	}
	if _, err := Open(huge); !errors.Is(err, ErrTruncated) {
		Te.Errorf("oversized index length gave %v, want ErrTruncated", err)
	}
}

func TestCopyAllExcludedFrame(Te *testing.T) {
	dir := Te.TempDir()
	src := filepath.Join(dir, "src.ulm")
	dst := filepath.Join(dir, "dst.ulm")
	w, err := Create(src)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("y", Int(1)); err != nil {
		Te.Fatal(err)
	}
	if err := w.Sync(); err != nil {
		Te.Fatal(err)
	}
	//a middle frame holding nothing but the key to be excluded
	if err := w.Write("a", Int(2)); err != nil {
		Te.Fatal(err)
	}
	if err := w.Sync(); err != nil {
		Te.Fatal(err)
	}
	if err := w.Write("y", Int(3)); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	if err := Copy(src, dst, ".a"); err != nil {
		Te.Fatal(err)
	}
	r, err := Open(dst)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	//the all-excluded frame comes through empty, so the frame count and
	//the indices of the later frames match the source
	if r.NItems() != 3 {
		Te.Fatalf("copy has %d frames, want 3", r.NItems())
	}
	fr1, err := r.Frame(1)
	if err != nil {
		Te.Fatal(err)
	}
	if fr1.Has("a") || fr1.Has("y") {
		Te.Error("frame 1 of the copy is not empty")
	}
	if y, err := r.Int("y"); err != nil || y != 1 {
		Te.Errorf("frame 0 y: %d (%v), want 1", y, err)
	}
	fr2, err := r.Frame(2)
	if err != nil {
		Te.Fatal(err)
	}
	if y, err := fr2.Int("y"); err != nil || y != 3 {
		Te.Errorf("frame 2 y: %d (%v), want 3", y, err)
	}
}

func TestEmptyArchiveAndIteration(Te *testing.T) {
	dir := Te.TempDir()
	empty := filepath.Join(dir, "empty.ulm")
	w, err := Create(empty)
	if err != nil {
		Te.Fatal(err)
	}
	//sync with nothing buffered writes no frame
	if err := w.Sync(); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, err := Open(empty)
	if err != nil {
		Te.Fatal(err)
	}
	if r.NItems() != 0 {
		Te.Errorf("empty archive has %d frames", r.NItems())
	}
	if _, err := r.Get("y"); !errors.Is(err, ErrRange) {
		Te.Errorf("get on an empty archive gave %v, want ErrRange", err)
	}
	r.Close()
	//iteration is restartable: two passes see the same frames
	path := filepath.Join(dir, "iter.ulm")
	writeScenario(Te, path)
	r, err = Open(path)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	for pass := 0; pass < 2; pass++ {
		n := 0
		for _, fr := range r.Frames() {
			if !fr.Has("s") {
				Te.Errorf("pass %d: frame %d lost key s", pass, fr.Index())
			}
			n++
		}
		if n != 3 {
			Te.Errorf("pass %d: iterated %d frames, want 3", pass, n)
		}
	}
}
