package stereo

import "sgbmtuner/internal/models"

// costVolume stores one int32 cost per pixel and disparity level. Levels of a
// pixel are contiguous: index (y*width+x)*depth + k for disparity minDisparity+k.
type costVolume struct {
	width, height, depth int
	data                 []int32
}

func newCostVolume(width, height, depth int) *costVolume {
	return &costVolume{
		width:  width,
		height: height,
		depth:  depth,
		data:   make([]int32, width*height*depth),
	}
}

// at returns the cost levels of pixel (x, y)
func (cv *costVolume) at(x, y int) []int32 {
	o := (y*cv.width + x) * cv.depth
	return cv.data[o : o+cv.depth]
}

// maxPixelCost is the cost of a single pixel match that falls outside the
// right image: the largest possible gradient difference plus the largest
// intensity term.
func maxPixelCost(preFilterCap int) int32 {
	return int32(2*preFilterCap + 255>>2)
}

// matchingCost builds the block matching cost volume. The per-pixel cost
// compares the pre-filtered gradients and, at a quarter weight, the raw
// intensities; it is then summed over a blockSize x blockSize window clipped
// to the image.
func matchingCost(left, right, leftF, rightF *models.Image, p ParameterSet) *costVolume {
	w, h := left.Width, left.Height
	depth := p.numDisparities
	cv := newCostVolume(w, h, depth)

	outside := maxPixelCost(p.preFilterCap)
	radius := p.blockSize / 2
	plane := make([]int32, w*h)
	rows := make([]int32, w*h)
	prefix := make([]int32, max(w, h)+1)

	for k := 0; k < depth; k++ {
		d := p.minDisparity + k
		for y := 0; y < h; y++ {
			row := y * w
			for x := 0; x < w; x++ {
				xr := x - d
				if xr < 0 || xr >= w {
					plane[row+x] = outside
					continue
				}
				g := absInt(int(leftF.Pix[row+x]) - int(rightF.Pix[row+xr]))
				i := absInt(int(left.Pix[row+x]) - int(right.Pix[row+xr]))
				plane[row+x] = int32(g + i>>2)
			}
		}

		// horizontal window sums
		for y := 0; y < h; y++ {
			row := y * w
			prefix[0] = 0
			for x := 0; x < w; x++ {
				prefix[x+1] = prefix[x] + plane[row+x]
			}
			for x := 0; x < w; x++ {
				lo := clampInt(x-radius, 0, w-1)
				hi := clampInt(x+radius, 0, w-1)
				rows[row+x] = prefix[hi+1] - prefix[lo]
			}
		}

		// vertical window sums into the volume
		for x := 0; x < w; x++ {
			prefix[0] = 0
			for y := 0; y < h; y++ {
				prefix[y+1] = prefix[y] + rows[y*w+x]
			}
			for y := 0; y < h; y++ {
				lo := clampInt(y-radius, 0, h-1)
				hi := clampInt(y+radius, 0, h-1)
				cv.data[(y*w+x)*depth+k] = prefix[hi+1] - prefix[lo]
			}
		}
	}
	return cv
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
