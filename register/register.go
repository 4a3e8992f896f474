// Package register provides typed, policy-free access to the Amiga disk
// controller's hardware registers: the Paula DMA/disk-sync registers, the
// CIA-A peripheral register used for drive-select and motor lines, and the
// CIA-B timer used to clock head-stepping pulses.
//
// The register blocks never decide anything; they only read and write bits.
// All sequencing, retry and state-machine policy lives in the packages that
// hold a Bus (trackio, motor, floppy).
package register

// Bus is the minimal hardware access surface the register blocks need.
// Two implementations exist: simdisk.Bus (an in-process simulated
// chipset/medium, used by tests and by the CLI when its config sets
// mode = "image") and
// bridge.Bus (a real USB-serial adapter).
type Bus interface {
	// ReadWord reads a 16-bit custom-chip or CIA register.
	ReadWord(addr uint32) uint16
	// WriteWord writes a 16-bit custom-chip register.
	WriteWord(addr uint32, value uint16)

	// ReadByte reads an 8-bit CIA peripheral/timer register.
	ReadByte(addr uint32) byte
	// WriteByte writes an 8-bit CIA peripheral/timer register.
	WriteByte(addr uint32, value byte)

	// DMAStart arms the disk DMA engine to transfer length words between
	// the custom-chip disk pointer and chip RAM at ptr, in direction dir.
	// It returns immediately; completion is signalled out-of-band through
	// the Bus's owner (kernel.Clock/interrupt wiring), not by this call.
	DMAStart(ptr []uint16, length int, dir DMADirection)
	// DMAStop disables the disk DMA engine (DSKLEN = 0).
	DMAStop()
}

// DMADirection selects the direction of a disk DMA transfer.
type DMADirection int

const (
	DMARead  DMADirection = iota // DMA_READ  (spec.md §4.5 step 2)
	DMAWrite                     // DMA_WRITE (spec.md §4.5 write_track)
)

// Register addresses, named after original_source/disk/usr/src/kernel/amhardware.h.
// The numeric values are the real Amiga chipset/CIA addresses; simdisk and
// bridge both use them only as keys to tell which register an access
// targets, and neither sends them over a wire.
const (
	AddrDSKPT    uint32 = 0xDFF020 // disk DMA pointer, high word then low word
	AddrDSKLEN   uint32 = 0xDFF024 // disk DMA length/start/direction
	AddrDSKSYNC  uint32 = 0xDFF07E // disk sync word match register
	AddrADKCON   uint32 = 0xDFF09E // audio/disk control (precomp, sync mode)
	AddrADKCONR  uint32 = 0xDFF010 // audio/disk control, read
	AddrDMACON   uint32 = 0xDFF096 // DMA enable control
	AddrDMACONR  uint32 = 0xDFF002 // DMA enable control, read
	AddrINTENA   uint32 = 0xDFF09A // interrupt enable control
	AddrINTENAR  uint32 = 0xDFF01C // interrupt enable, read
	AddrINTREQ   uint32 = 0xDFF09C // interrupt request control
	AddrINTREQR  uint32 = 0xDFF01E // interrupt request, read

	AddrPRAA uint32 = 0xBFE001 // CIA-A peripheral data: drive ready/track0/wprot/change
	AddrPRBB uint32 = 0xBFD100 // CIA-B peripheral data: motor/select/side/direction/step

	AddrCRBB  uint32 = 0xBFDF00 // CIA-B timer B control register (step timer start/stop)
	AddrICRB  uint32 = 0xBFDD00 // CIA-B interrupt control register
	AddrTBLOB uint32 = 0xBFD600 // CIA-B timer B low byte
	AddrTBHIB uint32 = 0xBFD700 // CIA-B timer B high byte
)

// WCLR/WSET are the Amiga "funny register" write codes: bit 15 of a value
// written to a custom-chip control register selects whether the other set
// bits are being set (WSET) or cleared (WCLR), leaving the rest untouched.
const (
	WCLR uint16 = 0x0000
	WSET uint16 = 0x8000
	WALL uint16 = 0x7fff
)

// BCLR/BSET are the CIA equivalent for 8-bit "funny registers" (PRBB/PRAA
// are read-modify-write via these banked set/clear codes on real hardware;
// simdisk and bridge both just treat WriteByte as a plain read-modify-write
// using these masks, matching original_source's portBout()).
const (
	BCLR byte = 0x00
	BSET byte = 0x80
	BALL byte = 0x7f
)

// ADKCON bits (original_source amhardware.h).
const (
	PrecompMask uint16 = (1 << 13) | (1 << 14)
	Precomp0    uint16 = 0
	Precomp140  uint16 = 1 << 13
	MFMPrec     uint16 = 1 << 12
	WordSync    uint16 = 1 << 10
	MSBSync     uint16 = 1 << 9
	Fast        uint16 = 1 << 8
)

// DMACON/INTENA/INTREQ bits.
const (
	DiskDMAEnable uint16 = 1 << 4  // DSKEN
	AllDMAEnable  uint16 = 1 << 9  // DMAEN
	IntMaster     uint16 = 1 << 14 // INTEN
	IntExternal   uint16 = 1 << 13 // EXTER
	IntDiskSync   uint16 = 1 << 12 // DSKSYN
	IntDiskBlock  uint16 = 1 << 1  // DSKBLK (DMA-complete)
)

// PRAA bits (drive status line, read-only from the driver's point of view).
const (
	DskReady     byte = 1 << 5
	DskTrack0    byte = 1 << 4
	DskWriteProt byte = 1 << 3
	DskChange    byte = 1 << 2
)

// PRBB bits (drive control lines).
const (
	DskMotor byte = 1 << 7
	DskSel3  byte = 1 << 6
	DskSel2  byte = 1 << 5
	DskSel1  byte = 1 << 4
	DskSel0  byte = 1 << 3
	DskSide  byte = 1 << 2
	DskDirec byte = 1 << 1
	DskStep  byte = 1 << 0
)

// SelectMask returns the drive-select line bitmask for drive 0..3.
func SelectMask(drive int) byte {
	return DskSel0 << uint(drive)
}

// SyncWord is the literal MFM sync pattern the DMA engine locks onto.
const SyncWord uint16 = 0x4489

// DMA wraps Bus with the three registers needed to arm one raw-track
// transfer, mirroring original_source/.../floppy.c's read_track/write_track
// register sequences exactly.
type DMA struct {
	Bus Bus
}

// SetSync programs the sync-word match register.
func (d DMA) SetSync(word uint16) {
	d.Bus.WriteWord(AddrDSKSYNC, word)
}

// SetPrecomp selects write precompensation for the given cylinder, per
// spec.md §4.5: 0ns below cylinder 40, 140ns at and above.
func (d DMA) SetPrecomp(cyl int, forWrite bool) {
	d.Bus.WriteWord(AddrADKCON, WCLR|PrecompMask|MSBSync)
	bits := WSET | MFMPrec
	if cyl >= 40 {
		bits |= Precomp140
	} else {
		bits |= Precomp0
	}
	if !forWrite {
		bits |= WordSync | Fast
	} else {
		bits |= Fast
	}
	d.Bus.WriteWord(AddrADKCON, bits)
}

// EnableDisk turns on disk DMA at the DMA controller.
func (d DMA) EnableDisk() {
	d.Bus.WriteWord(AddrDMACON, WSET|DiskDMAEnable)
}

// Arm points DMA at buf and starts a transfer of length words in direction
// dir by handing all three to Bus.DMAStart; it writes no DSKLEN register
// itself.
func (d DMA) Arm(buf []uint16, length int, dir DMADirection) {
	d.Bus.DMAStart(buf, length, dir)
}

// Disarm disables disk DMA (DSKLEN = 0).
func (d DMA) Disarm() {
	d.Bus.DMAStop()
}
