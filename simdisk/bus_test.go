package simdisk

import (
	"runtime"
	"testing"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/register"
	"github.com/rmichiels/amfloppy/trackcache"
	"github.com/rmichiels/amfloppy/trackio"
)

func newTestBus() (*Bus, *kernel.Events, *kernel.Rendezvous) {
	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	return NewBus(events, wake), events, wake
}

func TestReadTrackRoundTripsThroughMedium(t *testing.T) {
	bus, events, wake := newTestBus()
	medium := NewBlankMedium()
	for st := 0; st < mfm.NumSectors; st++ {
		var payload [mfm.SectorSize]byte
		for i := range payload {
			payload[i] = byte(st*16 + i%16)
		}
		medium.WriteSector(3, 0, st, &payload)
	}
	bus.Insert(0, medium)

	dma := register.DMA{Bus: bus}
	clk := kernel.NewSimClock()
	engine := trackio.NewEngine(dma, clk, events, wake)

	slot := trackcache.NewDriveSlot(0, register.SelectMask(0), mfm.BufSize)
	slot.Cyl, slot.Side = 3, 0

	cia := register.CIA{Bus: bus}
	cia.MotorOn(0)
	for i := 0; i < 3; i++ {
		cia.StepPulse(0, 1)
	}
	cia.SetSide(0)

	if err := engine.ReadTrack(slot); err != nil {
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

func TestWriteTrackPersistsToMedium(t *testing.T) {
	bus, events, wake := newTestBus()
	bus.Insert(0, NewBlankMedium())

	dma := register.DMA{Bus: bus}
	clk := kernel.NewSimClock()
	engine := trackio.NewEngine(dma, clk, events, wake)

	slot := trackcache.NewDriveSlot(0, register.SelectMask(0), mfm.BufSize)
	slot.Cyl, slot.Side = 7, 1
	mfm.BuildTrack(slot.Buf)
	var payload [mfm.SectorSize]byte
	for i := range payload {
		payload[i] = 0xAA
	}
	slot.WriteSector(4, &payload)

	cia := register.CIA{Bus: bus}
	cia.MotorOn(0)
	for i := 0; i < 7; i++ {
		cia.StepPulse(0, 1)
	}
	cia.SetSide(1)

	if err := engine.WriteTrack(slot); err != nil {
		t.Fatalf("WriteTrack: %v", err)
	}

	persisted := bus.drives[0].medium.Track(7, 1)
	for i, v := range persisted {
		if v != slot.Buf[i] {
			t.Fatalf("medium track word %d = %#x, want %#x", i, v, slot.Buf[i])
		}
	}
}

func TestStepMovesSelectedDriveCylinder(t *testing.T) {
	bus, _, _ := newTestBus()
	bus.Insert(0, NewBlankMedium())
	cia := register.CIA{Bus: bus}
	cia.MotorOn(0)

	for i := 0; i < 5; i++ {
		cia.StepPulse(0, 1)
	}
	if got := bus.Cylinder(0); got != 5 {
		t.Fatalf("cylinder after 5 forward steps = %d, want 5", got)
	}
	cia.StepPulse(0, -1)
	if got := bus.Cylinder(0); got != 4 {
		t.Fatalf("cylinder after one backward step = %d, want 4", got)
	}
}

func TestDiskChangedClearsOnStep(t *testing.T) {
	bus, _, _ := newTestBus()
	bus.Insert(0, NewBlankMedium())
	cia := register.CIA{Bus: bus}
	cia.MotorOn(0)

	if !cia.DiskChanged() {
		t.Fatal("expected DiskChanged after Insert")
	}
	cia.StepPulse(0, 1)
	if cia.DiskChanged() {
		t.Fatal("expected DiskChanged to clear after a step pulse")
	}
}

func TestWriteProtectReflectsMedium(t *testing.T) {
	bus, _, _ := newTestBus()
	m := NewBlankMedium()
	m.WriteProtected = true
	bus.Insert(0, m)
	cia := register.CIA{Bus: bus}
	cia.MotorOn(0)

	if !cia.WriteProtected() {
		t.Fatal("expected WriteProtected true")
	}
}

func TestNoMediumTimesOutRead(t *testing.T) {
	bus, events, wake := newTestBus()
	bus.Connect(1) // present, but no disk inserted

	dma := register.DMA{Bus: bus}
	clk := kernel.NewSimClock()
	engine := trackio.NewEngine(dma, clk, events, wake)

	slot := trackcache.NewDriveSlot(1, register.SelectMask(1), mfm.BufSize)
	cia := register.CIA{Bus: bus}
	cia.MotorOn(1)

	done := make(chan error, 1)
	go func() { done <- engine.ReadTrack(slot) }()
	for !clk.Pending() {
		runtime.Gosched()
	}
	clk.Advance(2 * kernel.HZ)
	if err := <-done; err == nil {
		t.Fatal("expected an error reading an empty drive")
	}
}
