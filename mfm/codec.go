// Package mfm implements the MFM bit-level codec for IBM-PC-compatible
// double-density floppy tracks: byte<->MFM-word conversion, CRC-16/CCITT
// framing, the raw track buffer layout, and sector reassembly helpers.
// Grounded directly on original_source/disk/usr/src/kernel/floppy.c's
// MFM2bin/bin2MFM/bin2raw/raw2bin/build_track.
package mfm

import "errors"

// ErrCRC is returned by RawToBin when the decoded data CRC doesn't match
// the recomputed one.
var ErrCRC = errors.New("mfm: CRC mismatch")

// Track geometry (spec.md §1/§4.2).
const (
	NumSectors   = 9
	NumCylinders = 80
	SectorSize   = 512
	MaxRetries   = 7
)

// Raw track buffer layout, in 16-bit words (spec.md §3).
const (
	Gap1Size = 70
	Gap2Size = 12
	Gap3Size = 22
	Gap4Size = 12
	SyncSize = 3

	HeaderSize = 7   // H_SIZE
	DataSize   = 515 // D_SIZE

	// Offsets of the sync-terminated header and data fields within one
	// sector's raw chunk.
	HOffset = Gap1Size + Gap2Size + SyncSize                     // 85
	DOffset = HOffset + HeaderSize + Gap3Size + Gap4Size + SyncSize // 129

	// RawSectorSize is the size in words of one full sector chunk:
	// GAP1 GAP2 SYNC HEADER GAP3 GAP4 SYNC DATA.
	RawSectorSize = Gap1Size + Gap2Size + SyncSize + HeaderSize +
		Gap3Size + Gap4Size + SyncSize + DataSize // 644

	RawTrackSize = 0x1D00 // room for one full captured rotation, in words
	WipeSize     = 0x0400 // wipe-prefix before the first sector, in words
	BufSize      = WipeSize + RawSectorSize*NumSectors + 2
)

// Offsets within the HEADER field (relative to HOffset).
const (
	HID       = 0
	HCylinder = 1
	HSide     = 2
	HSector   = 3
	HLength   = 4
	HCRC      = 5
)

// Offsets within the DATA field (relative to DOffset).
const (
	DID   = 0
	DData = 1
	DCRC  = 513
)

// MFM-encoded literal words (spec.md §3).
const (
	Gap1Data   uint16 = 0x9254 // uncoded 0x4E
	Gap2Data   uint16 = 0xAAAA // uncoded 0x00
	Gap3Data          = Gap1Data
	Gap4Data          = Gap2Data
	SyncData   uint16 = 0x4489 // uncoded 0xA1, the literal sync mark
	HIDMarker  uint16 = 0x5554 // uncoded 0xFE, MFM-encoded header-ID tag
	DIDMarker  uint16 = 0x5545 // uncoded 0xFB, MFM-encoded data-ID tag
	CRCBugFix  uint16 = 0x5254 // write-behavior-quirk workaround word
)

// DecodeByte maps a 16-bit MFM word to its 8-bit payload by selecting the
// odd-indexed (1st, 3rd, 5th, ... bit, 1-based) bits — original_source's
// MFM2bin.
func DecodeByte(word uint16) byte {
	var bin byte
	c1, c2 := uint16(1), uint16(1)
	for c1 < 255 {
		if word&c2 != 0 {
			bin |= byte(c1)
		}
		c1 <<= 1
		c2 <<= 2
	}
	return bin
}

// EncodeByte produces the MFM code for byte b, given the previously
// MFM-encoded word prevWord, using the tag-bit rule: a tag (clock) bit is
// set wherever two consecutive data bits — possibly straddling the join
// with prevWord — are both zero. original_source's bin2MFM.
func EncodeByte(prevWord uint16, b byte) uint16 {
	byte2 := uint16(b) | (prevWord << 8)
	var code uint16
	ci, bi, bbi := uint16(1), uint16(1), uint16(3)
	for bi < 130 {
		if byte2&bi != 0 {
			code |= ci
		}
		if byte2&bbi == 0 {
			code |= ci << 1
		}
		ci <<= 2
		bi <<= 1
		bbi <<= 1
	}
	return code
}

// sectorBase returns the offset, in words, of sector index st's chunk
// within a full drive track buffer (after the wipe prefix).
func sectorBase(st int) int {
	return WipeSize + st*RawSectorSize
}

// HeaderOffset returns the offset of sector st's HEADER field.
func HeaderOffset(st int) int {
	return sectorBase(st) + HOffset
}

// DataOffset returns the offset of sector st's DATA field.
func DataOffset(st int) int {
	return sectorBase(st) + DOffset
}

// RawToBin decodes sector st's data field out of buf into a 512-byte
// payload, verifying its CRC. On mismatch it returns ErrCRC and the
// returned bytes are indeterminate (spec.md §4.2).
func RawToBin(buf []uint16, st int) ([SectorSize]byte, error) {
	var out [SectorSize]byte
	off := DataOffset(st)
	for i := 0; i < SectorSize; i++ {
		out[i] = DecodeByte(buf[off+DData+i])
	}
	gotHi := DecodeByte(buf[off+DCRC])
	gotLo := DecodeByte(buf[off+DCRC+1])
	got := uint16(gotHi)<<8 | uint16(gotLo)
	want := CRC16(out[:])
	if got != want {
		return out, ErrCRC
	}
	return out, nil
}

// BinToRaw MFM-encodes payload into sector st's data-field slot in buf,
// computes and encodes its CRC, and writes the literal CRCBugFix word
// immediately after the CRC bytes — a documented drive write-behavior
// workaround that the encoder must not omit (spec.md §4.2). It does not
// touch the sector's D_ID marker or header field.
func BinToRaw(buf []uint16, st int, payload *[SectorSize]byte) {
	off := DataOffset(st)
	for i := 0; i < SectorSize; i++ {
		buf[off+DData+i] = EncodeByte(buf[off+DData+i-1], payload[i])
	}
	crc := CRC16(payload[:])
	hi, lo := byte(crc>>8), byte(crc)
	buf[off+DCRC] = EncodeByte(buf[off+DData+SectorSize-1], hi)
	buf[off+DCRC+1] = EncodeByte(buf[off+DCRC], lo)
	buf[off+DCRC+2] = CRCBugFix
}

// BuildTrack lays down the fixed GAP/SYNC framing for one full drive track
// buffer of length BufSize. Header and data fields are left zeroed; they
// are only ever populated by a successful track read (trackio) or, for a
// freshly formatted medium, by the simulator that owns the backing image.
// original_source's build_track().
func BuildTrack(buf []uint16) {
	if len(buf) < BufSize {
		panic("mfm: BuildTrack buffer too small")
	}
	p := 0
	fill := func(n int, word uint16) {
		for i := 0; i < n; i++ {
			buf[p] = word
			p++
		}
	}
	fill(WipeSize, Gap1Data)
	for st := 0; st < NumSectors; st++ {
		fill(Gap1Size, Gap1Data)
		fill(Gap2Size, Gap2Data)
		fill(SyncSize, SyncData) // header sync
		p += HeaderSize          // header content left untouched
		fill(Gap3Size, Gap3Data)
		fill(Gap4Size, Gap4Data)
		fill(SyncSize, SyncData) // data sync
		p += DataSize            // data content left untouched
	}
	for p < BufSize {
		buf[p] = Gap1Data
		p++
	}
}
