package trackio

import (
	"errors"
	"runtime"
	"testing"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/register"
	"github.com/rmichiels/amfloppy/trackcache"
)

// fakeBus is a register.Bus double whose DMAStart completes synchronously:
// for a read it delivers a prepared capture buffer, for a write it just
// records what was sent. Either way it posts DMAReady right away, unless
// silent is set (used to exercise the watchdog path).
type fakeBus struct {
	events  *kernel.Events
	wake    *kernel.Rendezvous
	capture []uint16 // delivered verbatim into the caller's read buffer
	written []uint16
	silent  bool
}

func (b *fakeBus) ReadWord(addr uint32) uint16     { return 0 }
func (b *fakeBus) WriteWord(addr uint32, v uint16) {}
func (b *fakeBus) ReadByte(addr uint32) byte       { return 0 }
func (b *fakeBus) WriteByte(addr uint32, v byte)   {}

func (b *fakeBus) DMAStart(ptr []uint16, length int, dir register.DMADirection) {
	if b.silent {
		return
	}
	if dir == register.DMARead {
		copy(ptr, b.capture)
	} else {
		b.written = append([]uint16(nil), ptr[:length]...)
	}
	b.events.Post(kernel.DMAReady)
	b.wake.Wake()
}

func (b *fakeBus) DMAStop() {}

// buildCapture lays down a canonical track for (cyl, side) with real
// headers/data, then returns a RawTrackSize-word capture starting
// rotateSectors sectors into that track, wrapping around — simulating a
// real captured rotation that doesn't start at sector 0.
func buildCapture(cyl, side, rotateSectors int) []uint16 {
	canon := make([]uint16, mfm.BufSize)
	mfm.BuildTrack(canon)
	for st := 0; st < mfm.NumSectors; st++ {
		hoff := mfm.HeaderOffset(st)
		fillHeader(canon, hoff, cyl, side, st+1)
		var payload [mfm.SectorSize]byte
		for i := range payload {
			payload[i] = byte(st*16 + i%16)
		}
		canon[mfm.DataOffset(st)+mfm.DID] = mfm.DIDMarker
		mfm.BinToRaw(canon, st, &payload)
	}
	cap := make([]uint16, mfm.RawTrackSize)
	start := rotateSectors * mfm.RawSectorSize
	for i := range cap {
		cap[i] = canon[(start+i)%len(canon)]
	}
	return cap
}

// fillHeader MFM-encodes a sector header in place: ID marker, cylinder,
// side, sector, length code, CRC (CRC content is irrelevant here since
// trackio's reassembly doesn't verify header CRCs, matching
// original_source).
func fillHeader(buf []uint16, hoff, cyl, side, sector int) {
	buf[hoff+mfm.HID] = mfm.HIDMarker
	prev := mfm.HIDMarker
	set := func(idx int, b byte) {
		buf[hoff+idx] = mfm.EncodeByte(prev, b)
		prev = buf[hoff+idx]
	}
	set(mfm.HCylinder, byte(cyl))
	set(mfm.HSide, byte(side))
	set(mfm.HSector, byte(sector))
	set(mfm.HLength, 2)
	buf[hoff+mfm.HCRC] = 0
	buf[hoff+mfm.HCRC+1] = 0
}

func newTestEngine(bus *fakeBus) *Engine {
	dma := register.DMA{Bus: bus}
	clk := kernel.NewSimClock()
	return NewEngine(dma, clk, bus.events, bus.wake)
}

func TestReadTrackReassemblesRotatedCapture(t *testing.T) {
	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	bus := &fakeBus{events: events, wake: wake, capture: buildCapture(10, 0, 4)}
	e := newTestEngine(bus)

	slot := trackcache.NewDriveSlot(0, 0x01, mfm.BufSize)
	slot.Cyl, slot.Side = 10, 0

	if err := e.ReadTrack(slot); err != nil {
		t.Fatalf("ReadTrack: %v", err)
	}
	for st := 0; st < mfm.NumSectors; st++ {
		got, err := slot.ReadSector(st)
		if err != nil {
			t.Fatalf("sector %d: %v", st, err)
		}
		for i, b := range got {
			want := byte(st*16 + i%16)
			if b != want {
				t.Fatalf("sector %d byte %d = %d, want %d", st, i, b, want)
			}
		}
	}
}

func TestReadTrackWrongCylinder(t *testing.T) {
	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	// Capture is labeled cylinder 12, but the slot thinks it's on 10.
	bus := &fakeBus{events: events, wake: wake, capture: buildCapture(12, 0, 0)}
	e := newTestEngine(bus)

	slot := trackcache.NewDriveSlot(0, 0x01, mfm.BufSize)
	slot.Cyl, slot.Side = 10, 0

	err := e.ReadTrack(slot)
	var wrongCyl *WrongCylinderError
	if !errors.As(err, &wrongCyl) {
		t.Fatalf("expected WrongCylinderError, got %v", err)
	}
	if wrongCyl.Found != 12 {
		t.Fatalf("Found = %d, want 12", wrongCyl.Found)
	}
}

func TestReadTrackTimesOut(t *testing.T) {
	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	bus := &fakeBus{events: events, wake: wake, silent: true}
	dma := register.DMA{Bus: bus}
	clk := kernel.NewSimClock()
	e := NewEngine(dma, clk, events, wake)

	slot := trackcache.NewDriveSlot(0, 0x01, mfm.BufSize)
	slot.Cyl, slot.Side = 10, 0

	done := make(chan error, 1)
	go func() { done <- e.ReadTrack(slot) }()
	for !clk.Pending() {
		runtime.Gosched()
	}
	clk.Advance(rotationDelayTicks)
	if err := <-done; !errors.Is(err, ErrDMATimeout) {
		t.Fatalf("err = %v, want ErrDMATimeout", err)
	}
}

func TestWriteTrackSendsBuffer(t *testing.T) {
	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	bus := &fakeBus{events: events, wake: wake}
	e := newTestEngine(bus)

	slot := trackcache.NewDriveSlot(0, 0x01, mfm.BufSize)
	slot.Cyl, slot.Side = 5, 1
	mfm.BuildTrack(slot.Buf)

	if err := e.WriteTrack(slot); err != nil {
		t.Fatalf("WriteTrack: %v", err)
	}
	if len(bus.written) != len(slot.Buf) {
		t.Fatalf("written %d words, want %d", len(bus.written), len(slot.Buf))
	}
}
