// Package trackio performs one drive's raw track transfers: arming the
// DMA engine, waiting (with a watchdog) for its completion event, and
// reassembling a captured track's rotated sector order back into a
// drive's track buffer. Grounded on original_source's read_track/
// write_track/adjust_buffer in disk/usr/src/kernel/floppy.c.
package trackio

import (
	"errors"
	"fmt"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/register"
	"github.com/rmichiels/amfloppy/trackcache"
)

// ErrDMATimeout is returned when the disk DMA engine never raised its
// completion event within one rotation's watchdog window — original_
// source's E_DISK_DMA, the "track has no syncs at all" failure mode.
var ErrDMATimeout = errors.New("trackio: disk DMA timed out")

// ErrBadDisk is returned when fewer than mfm.NumSectors distinct sectors
// could be reassembled out of a captured track — original_source's
// E_BAD_DISK.
var ErrBadDisk = errors.New("trackio: could not reassemble a full track")

// WrongCylinderError reports that the reassembled sectors' header
// cylinder numbers didn't match the cylinder the drive was seeked to,
// meaning the head is mechanically somewhere other than where the driver
// thinks it is. Found is the cylinder the headers actually claim.
// original_source's E_WRONG_CYL, raised from inside adjust_buffer.
type WrongCylinderError struct {
	Found int
}

func (e *WrongCylinderError) Error() string {
	return fmt.Sprintf("trackio: header cylinder mismatch, drive appears to be at cylinder %d", e.Found)
}

// rotationDelayTicks bounds how long a read waits for the DMA engine to
// find a sync and complete — original_source's ROTATION_DELAY (2
// seconds at 200ms/rotation, generous because debugging tools can run at
// a raised interrupt level and delay us).
const rotationDelayTicks = 2 * kernel.HZ

// Engine owns the scratch buffer a raw track read lands in before
// reassembly, plus the event/clock wiring used to wait for DMA
// completion.
type Engine struct {
	dma    register.DMA
	clock  kernel.Clock
	events *kernel.Events
	wake   *kernel.Rendezvous

	raw []uint16 // scratch capture buffer, mfm.RawTrackSize words
}

// NewEngine returns an Engine ready to read/write tracks over dma, using
// clock for the DMA watchdog and events/wake for the completion
// rendezvous (typically the same pair the rest of the driver's interrupt
// wiring posts to). Side selection is the caller's responsibility (done
// once per access, before any retry loop — see floppy.rdwtTrack),
// matching original_source's rdwt_track rather than read_track/
// write_track themselves.
func NewEngine(dma register.DMA, clock kernel.Clock, events *kernel.Events, wake *kernel.Rendezvous) *Engine {
	return &Engine{
		dma:    dma,
		clock:  clock,
		events: events,
		wake:   wake,
		raw:    make([]uint16, mfm.RawTrackSize),
	}
}

// armWatchdog arms the DMA timeout alarm and returns a cancel func.
func (e *Engine) armWatchdog() func() {
	e.clock.SetAlarm(rotationDelayTicks, func() {
		e.events.Post(kernel.TimedOut)
		e.wake.Wake()
	})
	return func() { e.clock.SetAlarm(0, nil) }
}

// ReadTrack captures one full rotation off the medium into the drive's
// own track buffer, correcting for the rotated sector order a real
// capture starts at. On a nil return slot.Buf holds the fully
// reassembled track; the caller still owns slot.Valid/ResetChecked
// (trackio only reports success or failure, trackcache owns the
// bookkeeping bits).
func (e *Engine) ReadTrack(slot *trackcache.DriveSlot) error {
	e.dma.SetSync(register.SyncWord)
	e.dma.SetPrecomp(slot.Cyl, false)
	e.dma.EnableDisk()

	cancel := e.armWatchdog()
	e.dma.Arm(e.raw, mfm.RawTrackSize, register.DMARead)
	got := e.wake.Wait(kernel.DMAReady | kernel.TimedOut)
	cancel()

	if got&kernel.TimedOut != 0 {
		return ErrDMATimeout
	}
	return e.reassemble(slot)
}

// WriteTrack writes the drive's cached track buffer (already laid out by
// mfm.BuildTrack/trackcache.WriteSector) straight to the medium.
func (e *Engine) WriteTrack(slot *trackcache.DriveSlot) error {
	e.dma.SetPrecomp(slot.Cyl, true)
	e.dma.EnableDisk()

	cancel := e.armWatchdog()
	e.dma.Arm(slot.Buf, len(slot.Buf), register.DMAWrite)
	got := e.wake.Wait(kernel.DMAReady | kernel.TimedOut)
	cancel()
	e.dma.Disarm()

	if got&kernel.TimedOut != 0 {
		return ErrDMATimeout
	}
	return nil
}

// reassemble is original_source's adjust_buffer: scan the raw capture for
// sync marks, decode each sector's header to find where it belongs, and
// copy header+data into the drive's track buffer at that sector's fixed
// slot.
func (e *Engine) reassemble(slot *trackcache.DriveSlot) error {
	found := make([]bool, mfm.NumSectors)
	count := 0
	trackPrev := slot.Cyl
	nwrong := 0

	n := len(e.raw)
	off := 0
	for off < n && count < mfm.NumSectors {
		for off < n && e.raw[off] != mfm.SyncData {
			off++
		}
		for off < n && e.raw[off] == mfm.SyncData {
			off++
		}
		if off >= n {
			break
		}
		if e.raw[off] != mfm.HIDMarker {
			continue
		}
		headerOff := off

		st := int(mfm.DecodeByte(e.raw[headerOff+mfm.HSector])) - 1
		if st < 0 || st >= mfm.NumSectors {
			continue
		}
		if int(mfm.DecodeByte(e.raw[headerOff+mfm.HSide])) != slot.Side {
			continue
		}
		off += mfm.HeaderSize + mfm.Gap3Size

		for off < n && e.raw[off] != mfm.SyncData {
			off++
		}
		for off < n && e.raw[off] == mfm.SyncData {
			off++
		}
		if off >= n || e.raw[off] != mfm.DIDMarker {
			continue
		}
		if found[st] {
			continue
		}
		found[st] = true
		count++

		copy(slot.Buf[mfm.HeaderOffset(st):mfm.HeaderOffset(st)+mfm.HeaderSize], e.raw[headerOff:headerOff+mfm.HeaderSize])
		copy(slot.Buf[mfm.DataOffset(st):mfm.DataOffset(st)+mfm.DataSize], e.raw[off:off+mfm.DataSize])

		off += mfm.DataSize
		trackNow := int(mfm.DecodeByte(e.raw[headerOff+mfm.HCylinder]))
		if trackNow != trackPrev {
			nwrong++
			trackPrev = trackNow
		}
	}

	if count < mfm.NumSectors {
		return ErrBadDisk
	}
	if nwrong > 0 {
		return &WrongCylinderError{Found: trackPrev}
	}
	return nil
}
