// Package simdisk is an in-process simulated Amiga custom-chip bus and
// virtual MFM medium: a register.Bus good enough to exercise the full
// driver core (seek, motor timing, DMA, CRC-checked reassembly, retry)
// without real hardware attached. It is the thing that makes spec.md's
// end-to-end scenarios actually runnable.
package simdisk

import "github.com/rmichiels/amfloppy/mfm"

// Medium is one drive's virtual disk surface: every cylinder's both
// sides, each laid out exactly as trackcache.DriveSlot.Buf is. mfm.
// BuildTrack's own doc comment calls out that header/data fields are
// left zeroed "until... populated... by the simulator that owns the
// backing image" for a freshly formatted medium — this is that
// simulator.
type Medium struct {
	WriteProtected bool

	tracks [mfm.NumCylinders][2][]uint16
}

// NewBlankMedium returns a Medium with every sector of every track
// formatted: real headers plus zeroed, CRC-valid data, exactly as a
// low-level format pass would leave it. mfm.BuildTrack alone only lays
// down gap/sync framing and leaves header fields zero, which trackio's
// reassemble can't recover a sector from (it keys off the HID marker);
// WriteSector is what actually makes a track's sectors readable.
func NewBlankMedium() *Medium {
	m := &Medium{}
	var zero [mfm.SectorSize]byte
	for c := 0; c < mfm.NumCylinders; c++ {
		for s := 0; s < 2; s++ {
			buf := make([]uint16, mfm.BufSize)
			mfm.BuildTrack(buf)
			m.tracks[c][s] = buf
			for st := 0; st < mfm.NumSectors; st++ {
				m.WriteSector(c, s, st, &zero)
			}
		}
	}
	return m
}

// Track returns the raw word buffer backing cylinder cyl, side side, in
// trackcache.DriveSlot.Buf's own canonical (unrotated) layout.
func (m *Medium) Track(cyl, side int) []uint16 {
	return m.tracks[cyl][side]
}

// WriteSector formats payload directly into one sector's data field and
// header, seeding a Medium with known, CRC-valid content without going
// through the driver itself — used to pre-populate a disk image for
// tests and for the CLI's image mode (loading a flat image file).
func (m *Medium) WriteSector(cyl, side, st int, payload *[mfm.SectorSize]byte) {
	buf := m.tracks[cyl][side]
	encodeHeader(buf, st, cyl, side)

	d := mfm.DataOffset(st)
	buf[d+mfm.DID] = mfm.DIDMarker
	mfm.BinToRaw(buf, st, payload)
}

// encodeHeader MFM-encodes sector st's ID/cylinder/side/sector/length/CRC
// header fields, chaining each byte's encode off the previous one's
// result exactly as mfm.BinToRaw does for the data field. original_
// source's build_track leaves this to whatever last wrote the track; on
// real hardware that is always a previous low-level format operation, so
// here it is Medium's job.
func encodeHeader(buf []uint16, st, cyl, side int) {
	h := mfm.HeaderOffset(st)
	buf[h+mfm.HID] = mfm.HIDMarker
	prev := mfm.HIDMarker

	write := func(off int, b byte) {
		buf[h+off] = mfm.EncodeByte(prev, b)
		prev = buf[h+off]
	}
	write(mfm.HCylinder, byte(cyl))
	write(mfm.HSide, byte(side))
	write(mfm.HSector, byte(st+1))
	write(mfm.HLength, 2)

	header := [4]byte{byte(cyl), byte(side), byte(st + 1), 2}
	crc := mfm.CRC16(header[:])
	write(mfm.HCRC, byte(crc>>8))
	write(mfm.HCRC+1, byte(crc))
}
