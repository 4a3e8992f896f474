package cmd

import (
	"errors"
	"fmt"

	"github.com/rmichiels/amfloppy/floppy"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the drive's first sector reads",
	Long:  "Probe the configured drive by reading its first sector and report the result: success, the driver error code, or another error. Write-protect state is not reported.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		_, readErr := s.ctx.DiskRead(device(), 0, 0, 0, 512)

		var errno floppy.Errno
		switch {
		case readErr == nil:
			fmt.Printf("drive %d: connected, medium present, sector 0 reads OK\n", flagDrive)
		case errors.As(readErr, &errno):
			fmt.Printf("drive %d: %s\n", flagDrive, errno)
		default:
			fmt.Printf("drive %d: %v\n", flagDrive, readErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
