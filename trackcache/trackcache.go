// Package trackcache holds one drive's write-back track buffer: the raw
// MFM words for the currently seeked cylinder/side, and the dirty/checked
// bitsets that decide when a cached sector can be trusted and when the
// whole track must be re-read or flushed. Grounded on original_source's
// struct disk and its read_block/write_block in
// disk/usr/src/kernel/floppy.c; the actual hardware I/O those functions
// also perform (seeking, motor control, raw track transfer) belongs to
// trackio, which drives a DriveSlot rather than embedding one.
package trackcache

import "github.com/rmichiels/amfloppy/mfm"

// fullMask has all NumSectors bits set: every sector's data CRC has been
// checked since the track buffer was last loaded. original_source tests
// this exact condition as "dp->checked != 511".
const fullMask = (1 << mfm.NumSectors) - 1

// NoCylinder is the sentinel Cyl value meaning "nothing seeked yet",
// matching original_source's dp->cyl = NR_CYLINDERS at drive init.
const NoCylinder = mfm.NumCylinders

// DriveSlot is one physical drive's cached track state.
type DriveSlot struct {
	Num            int    // drive index 0-3
	Sel            byte   // CIA select-line mask for this drive
	Cyl            int    // currently seeked cylinder, or NoCylinder
	Side           int    // currently seeked side
	Valid          bool   // Buf holds a successfully read track
	WriteProtected bool   // write-protect sensed at last seek
	Buf            []uint16

	dirty   uint16 // bit st set: sector st differs from what's on the medium
	checked uint16 // bit st set: sector st's data CRC has been verified
}

// NewDriveSlot allocates a drive slot with a track buffer of the given
// size (mfm.BufSize) and resets it to the unseeked state.
func NewDriveSlot(num int, sel byte, bufSize int) *DriveSlot {
	d := &DriveSlot{Num: num, Sel: sel, Buf: make([]uint16, bufSize)}
	d.Reset()
	return d
}

// Reset returns the slot to its just-attached state: no cylinder seeked,
// buffer invalid, nothing dirty or checked.
func (d *DriveSlot) Reset() {
	d.Cyl = NoCylinder
	d.Side = 0
	d.Valid = false
	d.dirty = 0
	d.checked = 0
}

// Seeked reports whether the slot is already positioned at (cyl, side),
// meaning seek() can be a no-op. original_source's seek() early return.
func (d *DriveSlot) Seeked(cyl, side int) bool {
	return d.Cyl == cyl && d.Side == side
}

// AnyDirty reports whether any sector in the cached track has been
// written but not yet flushed to the medium.
func (d *DriveSlot) AnyDirty() bool {
	return d.dirty != 0
}

// IsDirty reports whether sector st specifically is dirty.
func (d *DriveSlot) IsDirty(st int) bool {
	return d.dirty&(1<<uint(st)) != 0
}

// MarkDirty records that sector st was just written into the cache.
func (d *DriveSlot) MarkDirty(st int) {
	d.dirty |= 1 << uint(st)
}

// ClearDirty clears all dirty bits, done once the track has been
// successfully written back to the medium.
func (d *DriveSlot) ClearDirty() {
	d.dirty = 0
}

// AllChecked reports whether every sector's CRC has been verified since
// the track buffer was last (re)loaded — original_source's "checked ==
// 511" fast path in write_block that skips the defensive re-read.
func (d *DriveSlot) AllChecked() bool {
	return d.checked == fullMask
}

// MarkChecked records that sector st's data CRC has been verified good.
func (d *DriveSlot) MarkChecked(st int) {
	d.checked |= 1 << uint(st)
}

// ResetChecked clears all checked bits, done whenever the buffer is
// reloaded from the medium (a fresh read makes every previous CRC check
// stale).
func (d *DriveSlot) ResetChecked() {
	d.checked = 0
}

// ReadSector decodes sector st out of the cached track buffer, marking it
// checked on success. The caller (floppy's readBlock) retries a
// full track re-read on mfm.ErrCRC — this method only ever looks at the
// buffer already in memory.
func (d *DriveSlot) ReadSector(st int) ([mfm.SectorSize]byte, error) {
	out, err := mfm.RawToBin(d.Buf, st)
	if err == nil {
		d.MarkChecked(st)
	}
	return out, err
}

// WriteSector MFM-encodes payload into sector st of the cached track
// buffer and marks it dirty. The caller must first have ensured (via
// AllChecked, or by checking every sector's CRC) that it's safe to let an
// unverified neighbor sector sit uncorrected in the cache — original_
// source's write_block guards this before ever calling bin2raw.
func (d *DriveSlot) WriteSector(st int, payload *[mfm.SectorSize]byte) {
	mfm.BinToRaw(d.Buf, st, payload)
	d.MarkDirty(st)
}
