package stereo

import "sgbmtuner/internal/models"

// PreFilter returns the horizontal Sobel response of img, truncated to
// [-preFilterCap, preFilterCap] and shifted by preFilterCap so that every
// sample lies in [0, 2*preFilterCap].
// Rows and columns outside the image replicate the border.
func PreFilter(img *models.Image, preFilterCap int) *models.Image {
	w, h := img.Width, img.Height
	out := models.NewImage(w, h)
	for y := 0; y < h; y++ {
		up := img.Pix[clampInt(y-1, 0, h-1)*w:]
		mid := img.Pix[y*w:]
		down := img.Pix[clampInt(y+1, 0, h-1)*w:]
		for x := 0; x < w; x++ {
			l := clampInt(x-1, 0, w-1)
			r := clampInt(x+1, 0, w-1)
			g := int(up[r]) - int(up[l]) +
				2*(int(mid[r])-int(mid[l])) +
				int(down[r]) - int(down[l])
			out.Pix[y*w+x] = uint8(clampInt(g, -preFilterCap, preFilterCap) + preFilterCap)
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
