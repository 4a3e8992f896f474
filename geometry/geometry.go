// Package geometry converts between a device's linear byte offset and the
// physical (drive, cylinder, side, sector) address the hardware needs, and
// back. Grounded directly on original_source's phys_convert() in
// disk/usr/src/kernel/floppy.c, generalized to also run in reverse (Offset),
// turning a physical sector back into the offset it belongs at. Outside
// this package only the tests call Offset.
package geometry

import "fmt"

// SectorSize is the fixed payload size of one sector (spec.md §1).
const SectorSize = 512

// Cylinders is the fixed per-side track count (spec.md §1).
const Cylinders = 80

// SectorsPerTrack is the fixed sector count of one cylinder/side (spec.md §1).
const SectorsPerTrack = 9

// Device-minor encoding (spec.md §4.1, original_source's FLOPPY_MINOR/
// floppy_task device-number convention): the low two bits select the
// physical drive 0-3; bit 3 (value 8) selects the double-sided (720K)
// density variant of that same physical drive over its single-sided
// (360K) variant.
const doubleSidedBit = 8

// Format reports a device's fixed geometry: its cylinder count (always
// Cylinders) and side count (1 for a single-sided device, 2 for a
// double-sided one).
func Format(device int) (cylinders, sides, sectorsPerTrack int) {
	return Cylinders, sideCount(device), SectorsPerTrack
}

func sideCount(device int) int {
	if device&doubleSidedBit != 0 {
		return 2
	}
	return 1
}

// Drive returns the physical drive index (0-3) a device number addresses.
func Drive(device int) int {
	return device & 0x03
}

// Locate converts a device's linear byte offset into its physical address:
// drive index, cylinder, side and sector (1-based, matching the on-disk
// sector numbering spec.md §1 and original_source use throughout). Returns
// an error if offset isn't sector-aligned or falls past the end of the
// medium — original_source's phys_convert returning -1.
func Locate(device int, offset int64) (drive, cyl, side, sector int, err error) {
	if offset < 0 || offset%SectorSize != 0 {
		return 0, 0, 0, 0, fmt.Errorf("geometry: offset %d is not sector-aligned", offset)
	}
	sides := sideCount(device)
	block := int(offset / SectorSize)
	perCyl := sides * SectorsPerTrack
	if block >= Cylinders*perCyl {
		return 0, 0, 0, 0, fmt.Errorf("geometry: offset %d is past end of medium", offset)
	}
	drive = Drive(device)
	cyl = block / perCyl
	rem := block % perCyl
	side = rem / SectorsPerTrack
	sector = rem%SectorsPerTrack + 1
	return drive, cyl, side, sector, nil
}

// Offset is the inverse of Locate: given a device and a physical address,
// it returns the linear byte offset that address corresponds to.
func Offset(device, cyl, side, sector int) (int64, error) {
	sides := sideCount(device)
	if cyl < 0 || cyl >= Cylinders {
		return 0, fmt.Errorf("geometry: cylinder %d out of range", cyl)
	}
	if side < 0 || side >= sides {
		return 0, fmt.Errorf("geometry: side %d out of range for device %d", side, device)
	}
	if sector < 1 || sector > SectorsPerTrack {
		return 0, fmt.Errorf("geometry: sector %d out of range", sector)
	}
	block := cyl*sides*SectorsPerTrack + side*SectorsPerTrack + (sector - 1)
	return int64(block) * SectorSize, nil
}
