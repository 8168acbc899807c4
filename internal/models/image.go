package models

import (
	"image"
	"image/color"
)

// DisparityShift is the number of fractional bits in a fixed-point disparity.
const DisparityShift = 4

// DisparityScale is the fixed-point factor of a disparity value (1 << DisparityShift).
const DisparityScale = 1 << DisparityShift

// Image represents a single-channel 8-bit grayscale image
type Image struct {
	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Pix holds the samples in row-major order, len(Pix) == Width*Height
	Pix []uint8
}

// NewImage allocates a zeroed image of the given size
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the sample at (x, y)
func (im *Image) At(x, y int) uint8 { return im.Pix[y*im.Width+x] }

// Set stores the sample at (x, y)
func (im *Image) Set(x, y int, v uint8) { im.Pix[y*im.Width+x] = v }

// Empty reports whether the image has no samples
func (im *Image) Empty() bool {
	return im == nil || im.Width <= 0 || im.Height <= 0
}

// Gray returns a copy of the image as a standard library grayscale image
func (im *Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	copy(g.Pix, im.Pix)
	return g
}

// DisparityField is the raw output of a disparity computation. Values are
// signed fixed point with DisparityShift fractional bits.
type DisparityField struct {
	// Width, Height are the dimensions of the source images
	Width, Height int

	// Data holds the fixed-point disparities in row-major order
	Data []int16

	// MinDisparity and NumDisparities are the search range the field was computed with
	MinDisparity   int
	NumDisparities int
}

// NewDisparityField allocates a field where every pixel is invalid
func NewDisparityField(width, height, minDisparity, numDisparities int) *DisparityField {
	f := &DisparityField{
		Width:          width,
		Height:         height,
		Data:           make([]int16, width*height),
		MinDisparity:   minDisparity,
		NumDisparities: numDisparities,
	}
	invalid := f.InvalidValue()
	for i := range f.Data {
		f.Data[i] = invalid
	}
	return f
}

// InvalidValue is the sentinel stored for rejected pixels. It is one full
// disparity level below MinDisparity, so it compares lower than any legal value.
func (f *DisparityField) InvalidValue() int16 {
	return int16((f.MinDisparity - 1) * DisparityScale)
}

// At returns the raw fixed-point value at (x, y)
func (f *DisparityField) At(x, y int) int16 { return f.Data[y*f.Width+x] }

// Valid reports whether (x, y) holds an accepted disparity
func (f *DisparityField) Valid(x, y int) bool { return f.At(x, y) != f.InvalidValue() }

// Disparity returns the disparity at (x, y) in pixels
func (f *DisparityField) Disparity(x, y int) float64 {
	return float64(f.At(x, y)) / DisparityScale
}

// Gray16 exports the field as a 16-bit image. Values are offset so that the
// invalid sentinel maps to 0 and every valid disparity to a positive sample.
func (f *DisparityField) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	invalid := int(f.InvalidValue())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(int(f.At(x, y)) - invalid)})
		}
	}
	return img
}

// DisplayMap is an 8-bit grayscale rendering of a DisparityField
type DisplayMap struct {
	// Width, Height match the field the map was derived from
	Width, Height int

	// Pix holds one sample per pixel in row-major order
	Pix []uint8

	// Degenerate is set when the field had no usable value range and every
	// pixel was mapped to 0
	Degenerate bool
}

// Gray returns the map as a single-channel image
func (m *DisplayMap) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(g.Pix, m.Pix)
	return g
}

// RGBA returns the map with the gray value replicated into R, G and B
func (m *DisplayMap) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		o := i * 4
		img.Pix[o] = v
		img.Pix[o+1] = v
		img.Pix[o+2] = v
		img.Pix[o+3] = 0xff
	}
	return img
}

// RGB888 returns packed 3-byte pixels, all channels equal
func (m *DisplayMap) RGB888() []byte {
	out := make([]byte, len(m.Pix)*3)
	for i, v := range m.Pix {
		out[i*3] = v
		out[i*3+1] = v
		out[i*3+2] = v
	}
	return out
}
