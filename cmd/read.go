package cmd

import (
	"fmt"
	"os"

	"github.com/rmichiels/amfloppy/geometry"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read [FILE]",
	Short: "Read the whole disk into FILE",
	Long:  "Read the entire configured drive's medium into FILE (or floppy.img), one sector range at a time through floppy.DriverContext.DiskRead.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := "floppy.img"
		if len(args) > 0 {
			filename = args[0]
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		size := int64(geometry.Cylinders * flagSides * geometry.SectorsPerTrack * geometry.SectorSize)
		out := make([]byte, size)

		const chunk = 64 * geometry.SectorSize
		for off := int64(0); off < size; off += chunk {
			count := chunk
			if remaining := size - off; int64(count) > remaining {
				count = int(remaining)
			}
			n, err := s.ctx.DiskRead(device(), 0, off, 0, count)
			if err != nil {
				return fmt.Errorf("read at offset %d: %w", off, err)
			}
			copy(out[off:], s.addr.buf[:n])
		}

		if err := os.WriteFile(filename, out, 0644); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
		fmt.Printf("read %d bytes from drive %d into %s\n", size, flagDrive, filename)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
