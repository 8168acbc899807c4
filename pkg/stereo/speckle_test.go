package stereo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sgbmtuner/internal/models"
)

// fieldFromLevels builds a field from whole-pixel disparities; -1 marks invalid
func fieldFromLevels(width int, levels []int) *models.DisparityField {
	f := models.NewDisparityField(width, len(levels)/width, 0, 16)
	for i, l := range levels {
		if l >= 0 {
			f.Data[i] = int16(l * models.DisparityScale)
		}
	}
	return f
}

func TestFilterSpecklesRemovesSmallIslands(t *testing.T) {
	f := fieldFromLevels(6, []int{
		4, 4, 4, 4, 4, 4,
		4, 9, 4, 4, 4, 4,
		4, 4, 4, 4, 12, 12,
		4, 4, 4, 4, 12, 12,
	})

	removed := FilterSpeckles(f, 3, models.DisparityScale)

	assert.Equal(t, 1, removed, "only the single 9 is below the minimum region size")
	assert.False(t, f.Valid(1, 1))
	assert.True(t, f.Valid(4, 2), "the 2x2 block of 12s has four pixels")
	assert.True(t, f.Valid(0, 0))
}

func TestFilterSpecklesRegionSizeBoundary(t *testing.T) {
	levels := []int{
		2, 2, 2, -1, 8,
		-1, -1, -1, -1, 8,
	}

	f := fieldFromLevels(5, levels)
	FilterSpeckles(f, 3, 0)
	assert.True(t, f.Valid(0, 0), "a region of exactly the minimum size is kept")
	assert.False(t, f.Valid(4, 0), "a region of two pixels is removed")

	f = fieldFromLevels(5, levels)
	FilterSpeckles(f, 4, 0)
	assert.False(t, f.Valid(0, 0))
}

func TestFilterSpecklesRangeJoinsRegions(t *testing.T) {
	levels := []int{
		3, 4, 5, 6,
	}

	f := fieldFromLevels(4, levels)
	FilterSpeckles(f, 4, 0)
	for x := 0; x < 4; x++ {
		assert.False(t, f.Valid(x, 0), "with zero range every pixel is its own region")
	}

	f = fieldFromLevels(4, levels)
	FilterSpeckles(f, 4, models.DisparityScale)
	for x := 0; x < 4; x++ {
		assert.True(t, f.Valid(x, 0), "neighbours one level apart form one region")
	}
}

func TestFilterSpecklesDisabled(t *testing.T) {
	f := fieldFromLevels(2, []int{1, 7})
	assert.Zero(t, FilterSpeckles(f, 0, 0))
	assert.True(t, f.Valid(0, 0))
	assert.True(t, f.Valid(1, 0))
}
