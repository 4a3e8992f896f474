// Package cmd is the amfloppy CLI: cobra subcommands driving
// floppy.DriverContext directly, reimplementing original_source's
// transfer.c/diskcopy.c operations against the Go core (see SPEC_FULL.md
// §7) instead of the teacher's own disk-image-container toolkit.
package cmd

import (
	"fmt"
	"time"

	"github.com/rmichiels/amfloppy/config"
	"github.com/rmichiels/amfloppy/floppy"
	"github.com/rmichiels/amfloppy/geometry"
	"github.com/rmichiels/amfloppy/kernel"
	"github.com/rmichiels/amfloppy/loader"
	"github.com/rmichiels/amfloppy/register"
	"github.com/rmichiels/amfloppy/simdisk"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "amfloppy",
	Short: "A CLI program which drives an Amiga-style MFM floppy disk controller",
	Long:  "The amfloppy tool reads, writes and reports on IBM-PC-compatible double-density floppy media, either simulated or through a real USB bridge adapter.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var (
	flagDrive    int
	flagSides    int
	flagRegistry *config.Registry
)

func init() {
	rootCmd.PersistentFlags().IntVar(&flagDrive, "drive", 0, "physical drive minor (0-3)")
	rootCmd.PersistentFlags().IntVar(&flagSides, "sides", 2, "1 for single-sided (360K), 2 for double-sided (720K)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// device is the minor device number flagDrive/flagSides addresses,
// matching geometry's encoding (low two bits drive, bit 3 side count).
func device() int {
	d := flagDrive & 0x03
	if flagSides == 2 {
		d |= 8
	}
	return d
}

// session bundles one command invocation's live collaborators, closed by
// deferring close() once the subcommand is done with them.
type session struct {
	ctx    *floppy.DriverContext
	addr   *addrSpace
	stopTk chan struct{}

	// only set in image mode, for flushing the in-memory Medium back to
	// its backing file when the command finishes.
	medium    *simdisk.Medium
	imagePath string
	sides     int
}

func (s *session) close() error {
	close(s.stopTk)
	if s.medium != nil {
		return saveMediumToFile(s.imagePath, s.medium, s.sides)
	}
	return nil
}

// openSession resolves the configured drive and builds a DriverContext
// against either a simulated image-backed bus or a real bridge adapter,
// ticking a kernel.Clock at kernel.HZ the way a real driver task's timer
// interrupt would.
func openSession() (*session, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	drv, err := reg.Drive(flagDrive)
	if err != nil {
		return nil, err
	}

	events := &kernel.Events{}
	wake := kernel.NewRendezvous(events)
	clk := kernel.NewSimClock()

	var bus register.Bus
	s := &session{sides: flagSides}

	switch drv.Mode {
	case config.ModeImage:
		simBus := simdisk.NewBus(events, wake)
		medium, err := loadMediumFromFile(drv.Image, flagSides)
		if err != nil {
			return nil, err
		}
		simBus.Insert(flagDrive, medium)
		bus = simBus
		s.medium = medium
		s.imagePath = drv.Image
	case config.ModeBridge:
		client, err := openBridgeClient(drv.Port)
		if err != nil {
			return nil, err
		}
		bus = newBridgeBus(client, events, wake)
	default:
		return nil, fmt.Errorf("cmd: drive %d has unknown mode %q", flagDrive, drv.Mode)
	}

	addr := newAddrSpace()
	cfg := loader.DefaultArgs().FloppyConfig()
	ctx := floppy.New(bus, addr, clk, events, wake, cfg)

	s.ctx = ctx
	s.addr = addr
	s.stopTk = make(chan struct{})
	go pumpClock(clk, s.stopTk)
	return s, nil
}

// pumpClock advances clk by one tick every kernel.HZ'th of a second,
// standing in for the real CIA timer interrupt a bare-metal build would
// drive SetAlarm's countdown from.
func pumpClock(clk *kernel.SimClock, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / kernel.HZ)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			clk.Advance(1)
		}
	}
}

func loadRegistry() (*config.Registry, error) {
	if flagRegistry != nil {
		return flagRegistry, nil
	}
	reg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flagRegistry = reg
	return reg, nil
}

// addrSpace is a trivial kernel.AddrSpace over one process-local buffer,
// the CLI's stand-in for the real umap() process address translation:
// every transfer in this CLI is a single-process copy through one flat
// Go slice, never a second address space.
type addrSpace struct {
	buf []byte
}

func newAddrSpace() *addrSpace {
	return &addrSpace{buf: make([]byte, geometry.SectorSize*geometry.SectorsPerTrack*geometry.Cylinders*2)}
}

func (a *addrSpace) Umap(procNr int, virtualAddr uintptr, length int) ([]byte, bool) {
	start := int(virtualAddr)
	if start < 0 || start+length > len(a.buf) {
		return nil, false
	}
	return a.buf[start : start+length], true
}
