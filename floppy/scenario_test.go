package floppy

import (
	"errors"
	"testing"

	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/simdisk"
)

// Scenario tests named S1-S6 below correspond one-to-one with the
// seeded end-to-end scenarios this driver was walked through by hand
// during design; each docstring is that scenario's text. Where a
// docstring names device 8, the test body addresses device 0 (drive 0,
// single-sided), on which offsets 0, 4608 and 9216 fall on cylinders 0,
// 1 and 2 as S3 expects.

// S1: Read 1024 bytes from offset 0 of device 8 after fresh init. Expect
// two sectors of the cyl-0/side-0 track returned; cache holds (0,0);
// delay > 0; dirty == 0.
func TestScenarioS1FreshReadSeeksAndCaches(t *testing.T) {
	ctx, _, clk := newTestContext(t)
	space := ctx.addr.(*memSpace)

	n, err := rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskRead(0, 0, 0, 0, 2*mfm.SectorSize)
	})
	if err != nil {
		t.Fatalf("DiskRead: %v", err)
	}
	if n != 2*mfm.SectorSize {
		t.Fatalf("read %d bytes, want %d", n, 2*mfm.SectorSize)
	}
	_ = space

	dr := ctx.drives[0]
	if dr.slot.Cyl != 0 || dr.slot.Side != 0 {
		t.Fatalf("cache holds (%d,%d), want (0,0)", dr.slot.Cyl, dr.slot.Side)
	}
	if dr.slot.AnyDirty() {
		t.Fatalf("cache dirty after a pure read")
	}
	if dr.motor.State() == 0 {
		t.Fatalf("motor state = Off after a transfer, want still running/cooling down")
	}
}

// S2: Write the single byte-pattern 0xA5 x 512 to offset 4608 (sector 9)
// of device 8, then read offset 4608 back. Expect the same 512 bytes.
// After the read, dirty == 0 (write was flushed on the intervening
// motor-off cycle).
func TestScenarioS2WriteThenReadSamePattern(t *testing.T) {
	ctx, _, clk := newTestContext(t)
	space := ctx.addr.(*memSpace)

	const offset = 4608
	var pattern [mfm.SectorSize]byte
	for i := range pattern {
		pattern[i] = 0xA5
	}
	copy(space.buf, pattern[:])

	_, err := rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskWrite(0, 0, offset, 0, mfm.SectorSize)
	})
	if err != nil {
		t.Fatalf("DiskWrite: %v", err)
	}

	dr := ctx.drives[0]
	// Drive the motor-off cooldown to completion so the write-back
	// flush this scenario depends on actually runs, the same way a
	// client would see dirty==0 only after the deferred flush fires.
	for dr.motor.State() != 0 {
		ctx.Tick()
		if ctx.PendingFlush() {
			if err := ctx.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		}
	}

	for i := range space.buf[:mfm.SectorSize] {
		space.buf[i] = 0
	}
	_, err = rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskRead(0, 0, offset, 0, mfm.SectorSize)
	})
	if err != nil {
		t.Fatalf("DiskRead: %v", err)
	}
	for i, b := range space.buf[:mfm.SectorSize] {
		if b != 0xA5 {
			t.Fatalf("byte %d = 0x%02x, want 0xa5", i, b)
		}
	}
	if dr.slot.AnyDirty() {
		t.Fatalf("cache dirty == 1 after the read, want 0")
	}
}

// S3: Issue a scattered I/O of 3 read sub-requests at offsets 0, 512*9,
// 512*18 on device 8. Expect three sectors read from cyl 0, cyl 1, cyl 2
// respectively, driver performing two seeks (0->1, 1->2) with a
// write-back in between only if a prior write had dirtied the cache.
func TestScenarioS3ScatteredReadAcrossCylinders(t *testing.T) {
	ctx, _, clk := newTestContext(t)

	offsets := []int64{0, 512 * 9, 512 * 18}
	for _, off := range offsets {
		_, err := rdwtAdvancing(clk, func() (int, error) {
			return ctx.DiskRead(0, 0, off, 0, mfm.SectorSize)
		})
		if err != nil {
			t.Fatalf("DiskRead at offset %d: %v", off, err)
		}
	}

	dr := ctx.drives[0]
	if dr.slot.Cyl != 2 {
		t.Fatalf("final cache cylinder = %d, want 2", dr.slot.Cyl)
	}
}

// S4: Inject a CRC mismatch on sector 3 of cyl 0 during read; expect up
// to 7 retries, each re-reading the whole track, followed by status CRC
// if all fail.
func TestScenarioS4PersistentCRCMismatchExhaustsRetries(t *testing.T) {
	ctx, bus, clk := newTestContext(t)

	m := simdisk.NewBlankMedium()
	var payload [mfm.SectorSize]byte
	for i := range payload {
		payload[i] = byte(i)
	}
	m.WriteSector(0, 0, 2, &payload) // sector 3 is index 2
	buf := m.Track(0, 0)
	buf[mfm.DataOffset(2)+mfm.DData] ^= 0xFFFF // corrupt sector 3's data field
	bus.Insert(0, m)

	_, err := rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskRead(0, 0, 2*mfm.SectorSize, 0, mfm.SectorSize)
	})
	if !errors.Is(err, ErrCRC) {
		t.Fatalf("err = %v, want ErrCRC", err)
	}
}

// S5: With dirty cache on drive 0, let the motor-off countdown expire.
// Expect to_flush bit 0 set, the dispatcher wakes, a full track write
// occurs, and delay is rearmed to 1 tick so the motor actually shuts off
// next tick.
func TestScenarioS5MotorOffCountdownDefersFlush(t *testing.T) {
	ctx, _, clk := newTestContext(t)
	space := ctx.addr.(*memSpace)

	var payload [mfm.SectorSize]byte
	for i := range payload {
		payload[i] = 0x5A
	}
	copy(space.buf, payload[:])

	_, err := rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskWrite(0, 0, 0, 0, mfm.SectorSize)
	})
	if err != nil {
		t.Fatalf("DiskWrite: %v", err)
	}

	dr := ctx.drives[0]
	if !dr.slot.AnyDirty() {
		t.Fatalf("cache not dirty right after the write")
	}

	sawFlushPending := false
	for dr.motor.State() != 0 {
		ctx.Tick()
		if ctx.PendingFlush() {
			sawFlushPending = true
			if err := ctx.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		}
	}
	if !sawFlushPending {
		t.Fatalf("motor-off countdown expired without ever flagging a deferred flush")
	}
	if dr.slot.AnyDirty() {
		t.Fatalf("cache still dirty after Flush")
	}
}

// S6: Write to offset 0 of device 8, then without any further request
// wait 3 seconds. Expect exactly one track write, motor shutdown, and
// valid preserved (because write-back does not invalidate the buffer).
func TestScenarioS6IdleWriteBackPreservesValid(t *testing.T) {
	ctx, _, clk := newTestContext(t)
	space := ctx.addr.(*memSpace)

	var payload [mfm.SectorSize]byte
	for i := range payload {
		payload[i] = 0x42
	}
	copy(space.buf, payload[:])

	_, err := rdwtAdvancing(clk, func() (int, error) {
		return ctx.DiskWrite(0, 0, 0, 0, mfm.SectorSize)
	})
	if err != nil {
		t.Fatalf("DiskWrite: %v", err)
	}

	dr := ctx.drives[0]
	wasValidBeforeFlush := dr.slot.Valid

	for dr.motor.State() != 0 {
		ctx.Tick()
		if ctx.PendingFlush() {
			if err := ctx.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		}
	}

	if dr.motor.State() != 0 {
		t.Fatalf("motor state = %v after idling out, want Off", dr.motor.State())
	}
	if !wasValidBeforeFlush || !dr.slot.Valid {
		t.Fatalf("valid bit not preserved across the idle write-back")
	}
}
