// Package imageio loads stereo inputs from disk and writes disparity renderings.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the WebP decoder for imaging.Open

	"sgbmtuner/internal/models"
)

// LoadGray decodes an image file and converts it to 8-bit luma.
// The format is detected from the file content.
func LoadGray(path string) (*models.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to a grayscale models.Image anchored at (0,0)
func FromImage(img image.Image) *models.Image {
	b := img.Bounds()
	out := models.NewImage(b.Dx(), b.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < out.Height; y++ {
			start := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Width:(y+1)*out.Width], g.Pix[start:start+out.Width])
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.Pix[y*out.Width+x] = c.Y
		}
	}
	return out
}

// SaveDisplayMap writes a display map; the encoder is chosen from the file
// extension. With rgb set the gray value is replicated into three channels.
func SaveDisplayMap(path string, m *models.DisplayMap, rgb bool) error {
	var img image.Image = m.Gray()
	if rgb {
		img = m.RGBA()
	}
	return SaveImage(path, img)
}

// SaveGray writes a grayscale image such as a pre-filtered input
func SaveGray(path string, img *models.Image) error {
	return SaveImage(path, img.Gray())
}

// SaveDisparity writes the raw field as a 16-bit PNG, offset so that invalid
// pixels are 0
func SaveDisparity(path string, field *models.DisparityField) error {
	return SaveImage(path, field.Gray16())
}

// Fit scales img down to fit within maxWidth x maxHeight keeping the aspect
// ratio. Images that already fit are returned unchanged; a non-positive bound
// disables scaling.
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	if maxWidth <= 0 || maxHeight <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}

// SaveImage writes img with the encoder chosen from the file extension
func SaveImage(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}
