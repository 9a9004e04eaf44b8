// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package aliproto

import (
	"fmt"
	"image"
)

// ImageHeader builds the 10-byte header that precedes the pixel buffer in a
// Display Image payload. Coordinate and size fields are big-endian u16.
func ImageHeader(width, height, x, y int) []byte {
	return []byte{
		FormatRGB565,
		0x00, // reserved
		byte(x >> 8), byte(x),
		byte(y >> 8), byte(y),
		byte(width >> 8), byte(width),
		byte(height >> 8), byte(height),
	}
}

// EncodeRGB565 converts an image to the device's RGB565 pixel format,
// row-major, high byte first (5 bits red, 6 green, 5 blue).
func EncodeRGB565(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, 0, w*h*2)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r5 := uint8(r>>8) >> 3
			g6 := uint8(g>>8) >> 2
			b5 := uint8(b>>8) >> 3
			out = append(out,
				(r5<<3)|(g6>>3),
				(g6<<5)|b5,
			)
		}
	}
	return out
}

// ImagePayload builds the complete Display Image payload: header plus
// RGB565 pixels, placed at the given panel coordinates.
func ImagePayload(img image.Image, x, y int) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}
	if w > 0xFFFF || h > 0xFFFF || x < 0 || y < 0 || x > 0xFFFF || y > 0xFFFF {
		return nil, fmt.Errorf("image geometry out of range: %dx%d at %d,%d", w, h, x, y)
	}

	payload := make([]byte, 0, ImageHeaderSize+w*h*2)
	payload = append(payload, ImageHeader(w, h, x, y)...)
	payload = append(payload, EncodeRGB565(img)...)
	return payload, nil
}
