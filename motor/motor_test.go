package motor

import (
	"testing"

	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/register"
)

type fakeBus struct {
	bytes map[uint32]byte
}

func newFakeBus() *fakeBus { return &fakeBus{bytes: map[uint32]byte{}} }

func (b *fakeBus) ReadWord(addr uint32) uint16  { return 0 }
func (b *fakeBus) WriteWord(addr uint32, v uint16) {}
func (b *fakeBus) ReadByte(addr uint32) byte     { return b.bytes[addr] }
func (b *fakeBus) WriteByte(addr uint32, v byte)  { b.bytes[addr] = v }
func (b *fakeBus) DMAStart(ptr []uint16, length int, dir register.DMADirection) {}
func (b *fakeBus) DMAStop()                                                     {}

func TestSpinOffGoesThroughSpinningUp(t *testing.T) {
	bus := newFakeBus()
	clk := kernel.NewSimClock()
	c := New(register.CIA{Bus: bus}, clk, 0)

	ready := false
	c.Spin(10, func() { ready = true })
	if c.State() != SpinningUp {
		t.Fatalf("state = %v, want SpinningUp", c.State())
	}
	clk.Advance(9)
	if ready {
		t.Fatal("onReady fired early")
	}
	clk.Advance(1)
	if !ready || c.State() != Running {
		t.Fatalf("ready=%v state=%v after alarm", ready, c.State())
	}
}

func TestSpinAlreadyOnSkipsWait(t *testing.T) {
	bus := newFakeBus()
	clk := kernel.NewSimClock()
	c := New(register.CIA{Bus: bus}, clk, 0)
	c.Spin(0, nil) // immediate, since startDelay==0
	if c.State() != Running {
		t.Fatal("expected Running")
	}
	c.StopRequest(5)
	ready := false
	c.Spin(100, func() { ready = true })
	if !ready || c.State() != Running {
		t.Fatal("expected immediate re-ready from Cooldown with no new wait")
	}
}

func TestTickShutsOffWhenClean(t *testing.T) {
	bus := newFakeBus()
	clk := kernel.NewSimClock()
	c := New(register.CIA{Bus: bus}, clk, 0)
	c.Spin(0, nil)
	c.StopRequest(3)
	for i := 0; i < 2; i++ {
		if c.Tick(false) {
			t.Fatal("flush requested too early")
		}
	}
	if c.Tick(false) {
		t.Fatal("clean tick should not request flush")
	}
	if c.State() != Off {
		t.Fatalf("state = %v, want Off", c.State())
	}
}

func TestTickRequestsFlushWhenDirty(t *testing.T) {
	bus := newFakeBus()
	clk := kernel.NewSimClock()
	c := New(register.CIA{Bus: bus}, clk, 0)
	c.Spin(0, nil)
	c.StopRequest(1)
	if !c.Tick(true) {
		t.Fatal("expected flush request")
	}
	if c.State() == Off {
		t.Fatal("motor should stay on pending the flush")
	}
}

func TestStepperRunsSettleThenSteps(t *testing.T) {
	bus := newFakeBus()
	cia := register.CIA{Bus: bus}
	timer := register.StepTimer{Bus: bus}
	s := NewStepper(cia, timer, 0)

	done := false
	s.Start(2, 2, 0x1000, func() { done = true })
	s.StepInterrupt() // settle delay still counting down, no step
	if done {
		t.Fatal("fired during settle delay")
	}
	s.StepInterrupt() // settle expires this call, first step pulse
	s.StepInterrupt() // second step pulse, offset reaches 0
	if done {
		t.Fatal("should not be done until an interrupt observes offset==0")
	}
	s.StepInterrupt() // offset==0 observed -> stop, onDone
	if !done {
		t.Fatal("expected onDone to fire")
	}
}
