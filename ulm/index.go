/*
 * index.go, part of gomol.
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

//index.go handles the fixed archive header and the per-frame index records.
//Each index record describes one frame: where its attribute block lives, the
//location/shape/dtype of every array declared in it, and the offset of the
//previous frame's record. The records form a backward-linked chain starting
//at the header locator; followed to the front and reversed, they give the
//frame list in creation order.

package ulm

import (
	"io"
	"os"
)

const (
	ulmMagic   = "gomolulm" //8 bytes at the start of every archive
	ulmVersion = 1
	headerSize = 32
	//byte positions within the header
	posVersion   = 8
	posByteOrder = 12
	posNFrames   = 16
	posLastIndex = 24
	//the byte order tag; '<' is little-endian, the only order this
	//implementation reads or writes.
	byteOrderTag = '<'
)

//header is the mutable part of the fixed-size archive header: the number of
//complete frames and the offset of the last frame's index record (0 when the
//archive is empty). It is rewritten strictly after a frame's payload and
//index record are on disk, which is what makes a torn sync harmless.
type header struct {
	nframes   int
	lastIndex int64
}

func encodeHeader(h header) []byte {
	b := make([]byte, 0, headerSize)
	b = append(b, ulmMagic...)
	b = appendUint32(b, ulmVersion)
	b = append(b, byteOrderTag, 0, 0, 0)
	b = appendUint64(b, uint64(h.nframes))
	b = appendUint64(b, uint64(h.lastIndex))
	return b
}

func readHeader(f *os.File, filename string) (header, error) {
	b := make([]byte, headerSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return header{}, ulmError(ErrTruncated, filename, "file shorter than the %d-byte header", headerSize)
		}
		return header{}, err
	}
	if string(b[:8]) != ulmMagic {
		return header{}, ulmError(ErrFormat, filename, "bad magic %q", b[:8])
	}
	version, _, err := decodeUint32(b, posVersion)
	if err != nil {
		return header{}, err
	}
	if version != ulmVersion {
		return header{}, ulmError(ErrFormat, filename, "unsupported version %d (want %d)", version, ulmVersion)
	}
	if b[posByteOrder] != byteOrderTag {
		return header{}, ulmError(ErrFormat, filename, "unsupported byte order tag %q", b[posByteOrder])
	}
	nframes, _, err := decodeUint64(b, posNFrames)
	if err != nil {
		return header{}, err
	}
	last, _, err := decodeUint64(b, posLastIndex)
	if err != nil {
		return header{}, err
	}
	return header{nframes: int(nframes), lastIndex: int64(last)}, nil
}

//arrayEntry is one array declared in a frame, with its top-level key.
type arrayEntry struct {
	key string
	ref ArrayRef
}

//frameIndex is the in-memory form of one index record.
type frameIndex struct {
	offset     int64 //where this record starts in the file
	end        int64 //first byte past this record
	prev       int64 //offset of the previous frame's record, 0 for frame 0
	attrOffset int64
	attrLen    int64
	arrays     []arrayEntry
	attrs      *Dict //decoded attribute block, nil until first needed
}

//An index record on disk is a uint32 byte count followed by that many bytes:
//attribute block location, the array entries, and the back link.
func encodeIndex(fi *frameIndex) []byte {
	b := make([]byte, 4) //room for the length prefix
	b = appendUint64(b, uint64(fi.attrOffset))
	b = appendUint64(b, uint64(fi.attrLen))
	b = appendUint32(b, uint32(len(fi.arrays)))
	for i := range fi.arrays {
		b = appendString(b, fi.arrays[i].key)
		b = appendArrayRef(b, &fi.arrays[i].ref)
	}
	b = appendUint64(b, uint64(fi.prev))
	copy(b[:4], appendUint32(nil, uint32(len(b)-4)))
	return b
}

func readIndex(f *os.File, offset int64, filename string) (*frameIndex, error) {
	lenbuf := make([]byte, 4)
	if _, err := f.ReadAt(lenbuf, offset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ulmError(ErrTruncated, filename, "file ends inside the index record at offset %d", offset)
		}
		return nil, err
	}
	n, _, err := decodeUint32(lenbuf, 0)
	if err != nil {
		return nil, err
	}
	//cap the allocation by what the file can actually hold: a corrupted
	//length prefix would otherwise ask for up to 4 GiB before ReadAt
	//even gets a chance to fail.
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if offset+4+int64(n) > st.Size() {
		return nil, ulmError(ErrTruncated, filename, "index record at offset %d claims %d bytes past the end of the file", offset, n)
	}
	b := make([]byte, n)
	if _, err := f.ReadAt(b, offset+4); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ulmError(ErrTruncated, filename, "file ends inside the index record at offset %d", offset)
		}
		return nil, err
	}
	fi := &frameIndex{offset: offset, end: offset + 4 + int64(n)}
	pos := 0
	var u uint64
	u, pos, err = decodeUint64(b, pos)
	if err != nil {
		return nil, err
	}
	fi.attrOffset = int64(u)
	u, pos, err = decodeUint64(b, pos)
	if err != nil {
		return nil, err
	}
	fi.attrLen = int64(u)
	var narr uint32
	narr, pos, err = decodeUint32(b, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < narr; i++ {
		var key string
		var ref *ArrayRef
		key, pos, err = decodeString(b, pos)
		if err != nil {
			return nil, err
		}
		ref, pos, err = decodeArrayRef(b, pos)
		if err != nil {
			return nil, err
		}
		fi.arrays = append(fi.arrays, arrayEntry{key: key, ref: *ref})
	}
	u, _, err = decodeUint64(b, pos)
	if err != nil {
		return nil, err
	}
	fi.prev = int64(u)
	return fi, nil
}

//readChain follows the backward chain from the last index record and returns
//the frame records as a flat list in creation order. nframes comes from the
//header and is cross-checked against the chain length.
func readChain(f *os.File, h header, filename string) ([]*frameIndex, error) {
	if h.nframes == 0 {
		return nil, nil
	}
	frames := make([]*frameIndex, 0, h.nframes)
	off := h.lastIndex
	for off != 0 {
		fi, err := readIndex(f, off, filename)
		if err != nil {
			return nil, err
		}
		frames = append(frames, fi)
		if len(frames) > h.nframes {
			return nil, ulmError(ErrFormat, filename, "index chain longer than the %d frames the header declares", h.nframes)
		}
		off = fi.prev
	}
	if len(frames) != h.nframes {
		return nil, ulmError(ErrFormat, filename, "index chain has %d frames, header declares %d", len(frames), h.nframes)
	}
	//the chain is walked back to front; flip it.
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames, nil
}
