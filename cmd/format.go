package cmd

import (
	"fmt"

	"github.com/rmichiels/amfloppy/config"
	"github.com/rmichiels/amfloppy/mfm"
	"github.com/rmichiels/amfloppy/simdisk"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Write a fresh, zero-filled image for the configured drive",
	Long: `Create (or overwrite) the configured drive's backing image file with every
sector zeroed and CRC-valid. Only supported for mode=image drives: a
real adapter has no index-hole-synchronized low-level format path this
driver implements (the index-synced write branch is out of scope, same
as the original driver this was ported from).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		drv, err := reg.Drive(flagDrive)
		if err != nil {
			return err
		}
		if drv.Mode != config.ModeImage {
			return fmt.Errorf("cmd: format only supports mode=image drives, drive %d is mode=%s", flagDrive, drv.Mode)
		}

		m := simdisk.NewBlankMedium()
		if err := saveMediumToFile(drv.Image, m, flagSides); err != nil {
			return err
		}
		fmt.Printf("formatted drive %d's image %s (%d cylinders, %d side(s))\n", flagDrive, drv.Image, mfm.NumCylinders, flagSides)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatCmd)
}
