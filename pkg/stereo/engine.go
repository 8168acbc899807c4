// Package stereo implements semi-global block matching (SGBM) for rectified
// grayscale image pairs.
//
// Compute runs in five stages:
//  1. pre-filter both images and build the windowed matching cost volume
//  2. aggregate costs along 5 (or 8 with FullDP) one-dimensional paths
//  3. pick the cheapest disparity per pixel, rejecting ambiguous matches
//  4. optionally cross-check against the right-image disparities
//  5. optionally remove small speckle regions
//
// Output disparities are 16-bit fixed point with 4 fractional bits. Rejected
// pixels hold (MinDisparity-1)*16.
package stereo

import (
	"fmt"
	"math"

	"sgbmtuner/internal/models"
)

// Engine computes disparity fields. It holds no state between calls, so one
// Engine may serve concurrent computations on independent inputs.
type Engine struct{}

// NewEngine creates a disparity engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compute estimates the disparity of every left-image pixel.
//
// All preconditions are checked before any cost computation starts: both
// images non-empty and well formed, identical sizes, and p valid for that
// size. Errors wrap ErrEmptyInput, ErrMalformedImage, ErrImageSizeMismatch
// or ErrInvalidParameter.
func (e *Engine) Compute(left, right *models.Image, p ParameterSet) (*models.DisparityField, error) {
	if err := CheckImages(left, right); err != nil {
		return nil, err
	}
	if err := p.Validate(left.Width, left.Height); err != nil {
		return nil, err
	}

	leftF := PreFilter(left, p.preFilterCap)
	rightF := PreFilter(right, p.preFilterCap)

	cost := matchingCost(left, right, leftF, rightF, p)
	sum := aggregate(cost, p)

	field := models.NewDisparityField(left.Width, left.Height, p.minDisparity, p.numDisparities)
	selectDisparities(sum, field, p)

	if p.speckleWindowSize > 0 {
		FilterSpeckles(field, p.speckleWindowSize, p.speckleRange*models.DisparityScale)
	}
	return field, nil
}

// CheckImages verifies that left and right can be matched against each other
func CheckImages(left, right *models.Image) error {
	if left.Empty() {
		return fmt.Errorf("%w: left image", ErrEmptyInput)
	}
	if right.Empty() {
		return fmt.Errorf("%w: right image", ErrEmptyInput)
	}
	if len(left.Pix) != left.Width*left.Height {
		return fmt.Errorf("%w: left image has %d samples for %dx%d", ErrMalformedImage, len(left.Pix), left.Width, left.Height)
	}
	if len(right.Pix) != right.Width*right.Height {
		return fmt.Errorf("%w: right image has %d samples for %dx%d", ErrMalformedImage, len(right.Pix), right.Width, right.Height)
	}
	if left.Width != right.Width || left.Height != right.Height {
		return fmt.Errorf("%w: left is %dx%d, right is %dx%d",
			ErrImageSizeMismatch, left.Width, left.Height, right.Width, right.Height)
	}
	return nil
}

// selectDisparities fills field with the winning disparities of the
// aggregated volume and runs the left-right check when enabled.
func selectDisparities(sum *costVolume, field *models.DisparityField, p ParameterSet) {
	w, h, depth := sum.width, sum.height, sum.depth
	invalid := field.InvalidValue()
	uniq := int64(100 - p.uniquenessRatio)
	checkLR := p.disp12MaxDiff >= 0

	// right-reference best disparity and its cost, per column of the right image
	rightDisp := make([]int, w)
	rightCost := make([]int32, w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rightDisp[x] = p.minDisparity - 1
			rightCost[x] = math.MaxInt32
		}

		for x := 0; x < w; x++ {
			s := sum.at(x, y)
			best := 0
			for k := 1; k < depth; k++ {
				if s[k] < s[best] {
					best = k
				}
			}
			minS := int64(s[best])

			unique := true
			for k := 0; k < depth; k++ {
				if int64(s[k])*uniq < minS*100 && absInt(k-best) > 1 {
					unique = false
					break
				}
			}
			if !unique {
				continue
			}

			if checkLR {
				xr := x - (p.minDisparity + best)
				if xr >= 0 && xr < w && s[best] < rightCost[xr] {
					rightCost[xr] = s[best]
					rightDisp[xr] = p.minDisparity + best
				}
			}

			field.Data[y*w+x] = int16(subpixel(s, best, p.minDisparity))
		}

		if checkLR {
			crossCheckRow(field.Data[y*w:(y+1)*w], rightDisp, invalid, p)
		}
	}
}

// subpixel refines level best with a parabola through its neighbours and
// returns the fixed-point disparity. Border levels and exact matches (zero
// aggregated cost) are not refined.
func subpixel(s []int32, best, minDisparity int) int {
	d := (minDisparity + best) * models.DisparityScale
	if best == 0 || best == len(s)-1 || s[best] == 0 {
		return d
	}
	prev, cur, next := int64(s[best-1]), int64(s[best]), int64(s[best+1])
	denom := prev + next - 2*cur
	if denom < 1 {
		denom = 1
	}
	return d + int(((prev-next)*models.DisparityScale+denom)/(denom*2))
}

// crossCheckRow invalidates left disparities that the right-reference
// estimate contradicts by more than Disp12MaxDiff. Both the floor and the
// ceiling of a fractional disparity must disagree for a pixel to be dropped.
func crossCheckRow(row []int16, rightDisp []int, invalid int16, p ParameterSet) {
	w := len(row)
	for x := 0; x < w; x++ {
		v := row[x]
		if v == invalid {
			continue
		}
		lo := floorDiv(int(v), models.DisparityScale)
		hi := floorDiv(int(v)+models.DisparityScale-1, models.DisparityScale)
		if disagrees(x-lo, lo, rightDisp, p) && disagrees(x-hi, hi, rightDisp, p) {
			row[x] = invalid
		}
	}
}

func disagrees(xr, d int, rightDisp []int, p ParameterSet) bool {
	if xr < 0 || xr >= len(rightDisp) {
		return false
	}
	r := rightDisp[xr]
	if r < p.minDisparity {
		return false
	}
	return absInt(r-d) > p.disp12MaxDiff
}
