package cmd

import (
	"fmt"
	"os"

	"github.com/rmichiels/amfloppy/geometry"
	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write FILE",
	Short: "Write FILE onto the whole disk",
	Long:  "Write FILE's contents onto the configured drive's medium, one sector range at a time through floppy.DriverContext.DiskWrite. FILE must be exactly the drive's capacity in size.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("read %s: %w", filename, err)
		}

		size := int64(geometry.Cylinders * flagSides * geometry.SectorsPerTrack * geometry.SectorSize)
		if int64(len(data)) != size {
			return fmt.Errorf("%s is %d bytes, want %d for a %d-side disk", filename, len(data), size, flagSides)
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		const chunk = 64 * geometry.SectorSize
		for off := int64(0); off < size; off += chunk {
			count := chunk
			if remaining := size - off; int64(count) > remaining {
				count = int(remaining)
			}
			copy(s.addr.buf, data[off:off+int64(count)])
			if _, err := s.ctx.DiskWrite(device(), 0, off, 0, count); err != nil {
				return fmt.Errorf("write at offset %d: %w", off, err)
			}
		}

		fmt.Printf("wrote %d bytes from %s to drive %d\n", size, filename, flagDrive)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
}
