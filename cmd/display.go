// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"
)

var (
	displayX      int
	displayY      int
	displayWidth  int
	displayHeight int
)

var displayCmd = &cobra.Command{
	Use:   "display <image>",
	Short: "Show an image on the panel",
	Long: `Upload an image (PNG, JPEG or GIF) to the panel.

The image is converted to the panel's RGB565 format. With --width/--height
it is rescaled first; --x/--y place it at an offset on the panel.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisplay,
}

func init() {
	displayCmd.Flags().IntVar(&displayX, "x", 0, "Horizontal placement on the panel")
	displayCmd.Flags().IntVar(&displayY, "y", 0, "Vertical placement on the panel")
	displayCmd.Flags().IntVar(&displayWidth, "width", 0, "Rescale to this width (0 = keep)")
	displayCmd.Flags().IntVar(&displayHeight, "height", 0, "Rescale to this height (0 = keep)")
	rootCmd.AddCommand(displayCmd)
}

func runDisplay(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[0])
	if err != nil {
		return err
	}
	if displayWidth > 0 || displayHeight > 0 {
		img = rescale(img, displayWidth, displayHeight)
	}

	sess, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info().Str("conn", connInfo).Msg("session open")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := sess.WaitForConnected(ctx); err != nil {
		return fmt.Errorf("device never stabilized: %w", err)
	}

	out, err := sess.DisplayImage(img, displayX, displayY)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("display rejected by device: status %d", out.Status)
	}

	b := img.Bounds()
	fmt.Printf("displayed %dx%d at %d,%d\n", b.Dx(), b.Dy(), displayX, displayY)
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// rescale resizes the image, deriving a missing dimension from the source
// aspect ratio.
func rescale(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width == 0 {
		width = b.Dx() * height / b.Dy()
	}
	if height == 0 {
		height = b.Dy() * width / b.Dx()
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
