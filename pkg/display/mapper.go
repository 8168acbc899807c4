// Package display turns raw fixed-point disparity fields into 8-bit images.
//
// Invalid pixels never take part in the value range: they are skipped when
// scanning for the minimum and maximum and are painted black (0).
package display

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sgbmtuner/internal/models"
)

// InvalidLevel is the display value given to rejected pixels
const InvalidLevel uint8 = 0

// Stats summarizes the valid disparities of a field, in pixels
type Stats struct {
	// Valid is the number of accepted pixels
	Valid int

	// Total is the number of pixels in the field
	Total int

	// Min, Max, Mean and StdDev describe the accepted disparities. They are
	// zero when no pixel is valid.
	Min, Max     float64
	Mean, StdDev float64
}

// ValidRatio is the fraction of accepted pixels
func (s Stats) ValidRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Total)
}

func (s Stats) String() string {
	return fmt.Sprintf("valid %d/%d (%.1f%%), disparity min %.2f max %.2f mean %.2f stddev %.2f",
		s.Valid, s.Total, 100*s.ValidRatio(), s.Min, s.Max, s.Mean, s.StdDev)
}

// Normalize linearly rescales the valid values of field into [0,255]:
//
//	out = round((v - min) * 255 / (max - min))
//
// When the field has no valid pixel or all valid pixels share one value, every
// output pixel is 0 and the map is flagged Degenerate.
func Normalize(field *models.DisparityField) *models.DisplayMap {
	m := &models.DisplayMap{
		Width:  field.Width,
		Height: field.Height,
		Pix:    make([]uint8, len(field.Data)),
	}

	lo, hi, ok := validRange(field)
	if !ok || lo == hi {
		m.Degenerate = true
		return m
	}

	invalid := field.InvalidValue()
	span := float64(hi - lo)
	for i, v := range field.Data {
		if v == invalid {
			m.Pix[i] = InvalidLevel
			continue
		}
		out := math.Round(float64(int(v)-int(lo)) * 255 / span)
		m.Pix[i] = uint8(math.Max(0, math.Min(255, out)))
	}
	return m
}

// validRange returns the smallest and largest valid raw value
func validRange(field *models.DisparityField) (lo, hi int16, ok bool) {
	invalid := field.InvalidValue()
	for _, v := range field.Data {
		if v == invalid {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

// Summarize computes statistics over the valid disparities of field
func Summarize(field *models.DisparityField) Stats {
	s := Stats{Total: len(field.Data)}
	values := validDisparities(field)
	s.Valid = len(values)
	if s.Valid == 0 {
		return s
	}

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

// validDisparities collects the accepted disparities in pixels
func validDisparities(field *models.DisparityField) []float64 {
	invalid := field.InvalidValue()
	values := make([]float64, 0, len(field.Data))
	for _, v := range field.Data {
		if v != invalid {
			values = append(values, float64(v)/models.DisparityScale)
		}
	}
	return values
}
