/*
 * doc.go, part of gomol.
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

//Package ulm implements the archive format gomol uses to persist simulation
//results: an ordered sequence of frames, each mapping string keys to scalar
//metadata, nested mappings, or large numeric arrays. Frames are written one
//sync at a time and are append-only afterwards; arrays are read lazily
//through proxies, and can be written incrementally in row chunks. A selective
//copy moves whole archives while dropping chosen keys, without loading the
//arrays it moves.

/******************** Format Specification **************************************

A ulm archive is a binary file, all multi-byte quantities little-endian as
declared by the byte-order tag in the header. The file starts with a fixed
32-byte header:

  bytes  0-7    magic "gomolulm"
  bytes  8-11   format version, uint32 (currently 1)
  byte   12     byte order tag: '<' (little-endian, the only defined value)
  bytes  13-15  zero padding
  bytes 16-23   number of complete frames, uint64
  bytes 24-31   file offset of the last frame's index record, uint64
                (0 while the archive has no frames)

After the header come the frames, back to back. Each frame is:

  [attribute block][array payloads][index record]

The attribute block is one encoded dict (see below) holding the frame's
scalar values, strings, lists and nested mappings, plus the headers of any
arrays written in full in one go. Array payloads are raw little-endian
elements, row after row. The index record is a uint32 byte count followed by:

  uint64  offset of the frame's attribute block
  uint64  byte length of the attribute block
  uint32  number of incrementally-declared arrays, then per array:
            string key, array header (see below)
  uint64  offset of the previous frame's index record, 0 for frame 0

Index records therefore form a backward-linked chain from the header locator
to frame 0; a reader follows the chain and reverses it, an appender jumps
straight to the last record. The locator in the header is rewritten strictly
after a frame's payload and index record are on disk, so a writer dying
mid-sync leaves a file whose trailing garbage no chain link reaches: the
archive simply still ends at its previous complete frame.

Values are encoded self-delimiting, one tag byte then the payload:

  0x01  null
  0x02  false
  0x03  true
  0x04  int      int64
  0x05  float    IEEE-754 float64 bits
  0x06  string   uint32 byte count + bytes
  0x07  list     uint32 element count + encoded elements
  0x08  dict     uint32 entry count + (string key, encoded value)*,
                 key order preserved
  0x09  array    header: dtype code byte, dimension count byte,
                 uint64 per dimension, uint64 payload offset,
                 uint64 payload byte length

Dtype codes: 1 int64, 2 float64 (3-5 reserved for int32, float32, uint8).

The format knows no compression and no byte order other than little-endian;
a '>' tag would be rejected, not negotiated. One process at a time may write
an archive. Any number of readers may share a completed one.

*********************************************************************************/

package ulm
