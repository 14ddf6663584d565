// Package rgb565 provides the 16-bit packed color format used by the SSD1963
// pixel data interface.
//
// The SSD1963 is configured for a 16-bit (565) pixel data interface, so every
// data word written after a memory write command is one pixel:
//
//	bit:   15 ... 11 | 10 ...  5 | 4 ... 0
//	       red (5)   | green (6) | blue (5)
//
// This package provides:
//
// - Color: a packed RGB565 value that implements color.Color
// - Model: a color model for converting standard Go colors to Color
// - Image: an image.Image implementation holding one Color per pixel, in the
// same row-major order the controller expects inside an address window
//
// Example usage:
//
//	// Create a 16x16 image
//	img := rgb565.NewImage(image.Rect(0, 0, 16, 16))
//
//	// Set a pixel to pure red
//	img.SetRGB565(3, 4, rgb565.Red)
//
//	// Use with standard Go image operations
//	draw.Draw(img, img.Bounds(), image.NewUniform(rgb565.Blue), image.Point{}, draw.Src)
package rgb565
