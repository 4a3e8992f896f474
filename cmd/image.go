package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rmichiels/amfloppy/geometry"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/simdisk"
)

// loadMediumFromFile reads a flat raw disk image (the same linear
// cyl/side/sector layout geometry.Offset addresses) into a freshly built
// simdisk.Medium, sector by sector through Medium.WriteSector so every
// track carries a correctly CRC'd header and data field. A missing file
// loads as a blank medium: every sector formatted, zero-filled and
// CRC-valid.
func loadMediumFromFile(path string, sides int) (*simdisk.Medium, error) {
	m := simdisk.NewBlankMedium()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cmd: read image %s: %w", path, err)
	}

	perCyl := sides * geometry.SectorsPerTrack
	total := geometry.Cylinders * perCyl
	want := total * mfm.SectorSize
	if len(data) != want {
		return nil, fmt.Errorf("cmd: image %s is %d bytes, want %d for a %d-side disk", path, len(data), want, sides)
	}

	for block := 0; block < total; block++ {
		cyl := block / perCyl
		rem := block % perCyl
		side := rem / geometry.SectorsPerTrack
		st := rem % geometry.SectorsPerTrack

		var payload [mfm.SectorSize]byte
		copy(payload[:], data[block*mfm.SectorSize:(block+1)*mfm.SectorSize])
		m.WriteSector(cyl, side, st, &payload)
	}
	return m, nil
}

// saveMediumToFile is the inverse of loadMediumFromFile: it decodes every
// sector of m back out through mfm.RawToBin and writes the resulting flat
// image to path, failing if any sector's CRC no longer checks out (a
// sector the driver never wrote decodes as the blank medium's CRC-valid
// zeros, so only a corrupted sector fails).
func saveMediumToFile(path string, m *simdisk.Medium, sides int) error {
	perCyl := sides * geometry.SectorsPerTrack
	total := geometry.Cylinders * perCyl
	data := make([]byte, total*mfm.SectorSize)

	for block := 0; block < total; block++ {
		cyl := block / perCyl
		rem := block % perCyl
		side := rem / geometry.SectorsPerTrack
		st := rem % geometry.SectorsPerTrack

		payload, err := mfm.RawToBin(m.Track(cyl, side), st)
		if err != nil {
			return fmt.Errorf("cmd: sector cyl=%d side=%d sector=%d: %w", cyl, side, st+1, err)
		}
		copy(data[block*mfm.SectorSize:], payload[:])
	}
	return os.WriteFile(path, data, 0644)
}
