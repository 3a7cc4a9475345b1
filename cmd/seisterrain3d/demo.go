package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"seisterrain3d/pkg/synthetic"
)

func newDemoCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "write a synthetic terrain and volume",
		Long:  "writes a synthetic GeoTIFF elevation model with nodata holes, a regular SEG-Y volume and one with an irregular trace layout",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}

			terrain := filepath.Join(dir, "terrain.tif")
			volume := filepath.Join(dir, "volume.sgy")
			irregular := filepath.Join(dir, "volume_irregular.sgy")

			if err := synthetic.WriteTerrain(terrain, synthetic.DefaultTerrainOptions()); err != nil {
				return err
			}
			vol := synthetic.DefaultVolumeOptions()
			if err := synthetic.WriteVolume(volume, vol); err != nil {
				return err
			}
			if err := synthetic.WriteIrregularVolume(irregular, vol); err != nil {
				return err
			}

			fmt.Println("Synthetic data written:")
			for _, p := range []string{terrain, volume, irregular} {
				fmt.Printf("- %s\n", p)
			}
			fmt.Printf("\nTry: seisterrain3d render --raster %s --volume %s --kind inline --index 20\n", terrain, volume)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "demo", "output directory")
	return cmd
}
