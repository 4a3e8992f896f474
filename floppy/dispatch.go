package floppy

import (
	"errors"

	"github.com/rmichiels/amfloppy/geometry"
	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/trackio"
)

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// seek gets drive dr ready to access (cyl, side), writing back its
// currently-cached track first if dirty and flushing before moving the
// head — original_source's seek().
func (ctx *DriverContext) seek(dr *drive, cyl, side int) error {
	slot := dr.slot
	if slot.Seeked(cyl, side) {
		return nil
	}
	if slot.AnyDirty() {
		if err := ctx.rdwtTrack(dr, true); err != nil {
			return err
		}
	}
	slot.Valid = false

	delta := cyl - slot.Cyl
	startDelay := motorOnDelay - abs(delta+settleDelay)*int(ctx.cfg.StepDelay)*kernel.HZ/1000000

	dr.motor.Spin(startDelay, func() {
		ctx.events.Post(kernel.MotorRunning)
		ctx.wake.Wake()
	})
	ctx.wake.Wait(kernel.MotorRunning)

	done := false
	dr.stepper.Start(delta, settleDelay, ctx.cfg.seekRate(), func() { done = true })
	for !done {
		dr.stepper.StepInterrupt()
	}

	slot.WriteProtected = ctx.cia.WriteProtected()
	slot.Cyl = cyl
	slot.Side = side
	return nil
}

// rdwtTrack performs one full read-or-write of drive dr's cached track
// against the medium, spinning the motor up first and retrying on error
// up to mfm.MaxRetries times — original_source's rdwt_track(). A
// WrongCylinderError from the engine is recovered in place by reseeking
// before the next retry, folding adjust_buffer's embedded reseek into
// this single retry loop instead of nesting it inside the read itself.
func (ctx *DriverContext) rdwtTrack(dr *drive, isWrite bool) error {
	slot := dr.slot
	if !isWrite {
		slot.Valid = false
	}

	dr.motor.Spin(motorOnDelay, func() {
		ctx.events.Post(kernel.MotorRunning)
		ctx.wake.Wake()
	})
	ctx.wake.Wait(kernel.MotorRunning)
	ctx.cia.SetSide(slot.Side)

	var err error
	for retries := mfm.MaxRetries; ; retries-- {
		if isWrite {
			err = ctx.engine.WriteTrack(slot)
		} else {
			err = ctx.engine.ReadTrack(slot)
		}
		var wrongCyl *trackio.WrongCylinderError
		if errors.As(err, &wrongCyl) {
			target := slot.Cyl
			slot.Cyl = wrongCyl.Found
			if serr := ctx.seek(dr, target, slot.Side); serr != nil {
				err = serr
			}
		}
		if err == nil || retries <= 0 {
			break
		}
	}

	dr.motor.StopRequest(motorOffDelay)
	if !isWrite {
		slot.Valid = err == nil
		if err == nil {
			slot.ResetChecked()
		}
	}
	slot.ClearDirty()
	return mapTrackioErr(err)
}

func mapTrackioErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, trackio.ErrDMATimeout):
		return ErrDiskDMA
	case errors.Is(err, trackio.ErrBadDisk):
		return ErrBadDisk
	}
	var wrongCyl *trackio.WrongCylinderError
	if errors.As(err, &wrongCyl) {
		return ErrWrongCyl
	}
	return err
}

// readBlock decodes sector st out of the cache, re-reading the whole
// track on a CRC miss up to mfm.MaxRetries times — original_source's
// read_block().
func (ctx *DriverContext) readBlock(dr *drive, st int) ([mfm.SectorSize]byte, error) {
	var out [mfm.SectorSize]byte
	var err error
	for retries := mfm.MaxRetries; ; retries-- {
		out, err = dr.slot.ReadSector(st)
		if err == nil {
			return out, nil
		}
		if retries <= 0 {
			break
		}
		if rerr := ctx.rdwtTrack(dr, false); rerr != nil {
			return out, rerr
		}
	}
	return out, ErrCRC
}

// writeBlock guards against caching an unverified neighbor sector before
// ever writing into the track buffer, re-reading the track if any
// sector's CRC doesn't check out — original_source's write_block().
func (ctx *DriverContext) writeBlock(dr *drive, st int, payload *[mfm.SectorSize]byte) error {
	slot := dr.slot
	if !slot.AllChecked() {
		var bad error
		for retries := mfm.MaxRetries; ; retries-- {
			bad = nil
			for i := 0; i < mfm.NumSectors; i++ {
				if _, e := slot.ReadSector(i); e != nil {
					bad = e
					break
				}
			}
			if bad == nil || retries <= 0 {
				break
			}
			if rerr := ctx.rdwtTrack(dr, false); rerr != nil {
				return rerr
			}
		}
		if bad != nil {
			return ErrCRC
		}
	}
	slot.WriteSector(st, payload)
	return nil
}

// diskChanged reports whether the medium was swapped since the last
// access, and refreshes the cached write-protect sense line — original_
// source's disk_changed().
func (ctx *DriverContext) diskChanged(dr *drive) bool {
	ctx.cia.SelectDrive(dr.slot.Num, false) // clear dr's active-low select bit
	changed := ctx.cia.DiskChanged()
	dr.slot.WriteProtected = ctx.cia.WriteProtected()
	return changed
}

// rdwt carries out one DISK_READ or DISK_WRITE request: original_
// source's do_rdwt(), sector by sector, advancing offset and the
// caller's buffer together.
func (ctx *DriverContext) rdwt(isWrite bool, device, procNr int, offset int64, virtualAddr uintptr, count int) (int, error) {
	buf, ok := ctx.addr.Umap(procNr, virtualAddr, count)
	if !ok {
		return 0, ErrBadArgs
	}
	if count <= 0 || count%mfm.SectorSize != 0 {
		return 0, ErrBadArgs
	}

	nbytes := 0
	for {
		driveNum, cyl, side, sector, gerr := geometry.Locate(device, offset)
		if gerr != nil {
			return nbytes, ErrBadArgs
		}
		dr := ctx.drives[driveNum]
		if dr == nil {
			return nbytes, ErrNoDrive
		}
		if ctx.diskChanged(dr) {
			dr.slot.Valid = false
		}
		if isWrite && dr.slot.WriteProtected {
			return nbytes, ErrWriteProt
		}
		if err := ctx.seek(dr, cyl, side); err != nil {
			return nbytes, err
		}
		if !dr.slot.Valid {
			if err := ctx.rdwtTrack(dr, false); err != nil {
				return nbytes, err
			}
		}

		st := sector - 1
		if isWrite {
			var payload [mfm.SectorSize]byte
			copy(payload[:], buf[nbytes:nbytes+mfm.SectorSize])
			if err := ctx.writeBlock(dr, st, &payload); err != nil {
				return nbytes, err
			}
		} else {
			data, err := ctx.readBlock(dr, st)
			if err != nil {
				return nbytes, err
			}
			copy(buf[nbytes:nbytes+mfm.SectorSize], data[:])
		}

		offset += mfm.SectorSize
		nbytes += mfm.SectorSize
		count -= mfm.SectorSize
		if count <= 0 {
			break
		}
	}
	return nbytes, nil
}

// DiskRead carries out a DISK_READ request.
func (ctx *DriverContext) DiskRead(device, procNr int, offset int64, virtualAddr uintptr, count int) (int, error) {
	return ctx.rdwt(false, device, procNr, offset, virtualAddr, count)
}

// DiskWrite carries out a DISK_WRITE request.
func (ctx *DriverContext) DiskWrite(device, procNr int, offset int64, virtualAddr uintptr, count int) (int, error) {
	return ctx.rdwt(true, device, procNr, offset, virtualAddr, count)
}

// IOVec is one chunk of a scattered I/O request: a virtual buffer and
// its length, transferred at the next sequential offset after the
// previous entry.
type IOVec struct {
	VirtualAddr uintptr
	Count       int
}

// ScatteredIO carries out a SCATTERED_IO request: each IOVec entry is
// transferred in turn, starting at offset and advancing by its own
// count, exactly as repeated DISK_READ/DISK_WRITE calls would. Grounded
// on the SCATTERED_IO row of original_source's message-format table; the
// do_vrdwt() implementation itself isn't present in the retrieved
// source, so the per-entry loop here is the natural generalization of
// do_rdwt over an iovec array.
func (ctx *DriverContext) ScatteredIO(isWrite bool, device, procNr int, offset int64, iov []IOVec) (int, error) {
	total := 0
	for _, v := range iov {
		n, err := ctx.rdwt(isWrite, device, procNr, offset, v.VirtualAddr, v.Count)
		total += n
		if err != nil {
			return total, err
		}
		offset += int64(v.Count)
	}
	return total, nil
}
