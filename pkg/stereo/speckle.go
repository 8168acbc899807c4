package stereo

import "sgbmtuner/internal/models"

// FilterSpeckles invalidates small disparity islands. Valid pixels are
// grouped into 4-connected regions where neighbouring values differ by at
// most maxDiff (fixed-point units); regions with fewer than minRegion pixels
// are set to the field's invalid value. It returns the number of pixels
// invalidated.
func FilterSpeckles(field *models.DisparityField, minRegion, maxDiff int) int {
	if minRegion <= 0 {
		return 0
	}
	w, h := field.Width, field.Height
	invalid := field.InvalidValue()
	labels := make([]int32, w*h)
	stack := make([]int, 0, 64)
	region := make([]int, 0, 64)
	removed := 0
	var label int32

	for start := range field.Data {
		if labels[start] != 0 || field.Data[start] == invalid {
			continue
		}
		label++
		labels[start] = label
		stack = append(stack[:0], start)
		region = region[:0]

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			region = append(region, i)
			v := int(field.Data[i])
			x, y := i%w, i/w

			visit := func(j int) {
				if labels[j] != 0 || field.Data[j] == invalid {
					return
				}
				if absInt(int(field.Data[j])-v) > maxDiff {
					return
				}
				labels[j] = label
				stack = append(stack, j)
			}
			if x > 0 {
				visit(i - 1)
			}
			if x < w-1 {
				visit(i + 1)
			}
			if y > 0 {
				visit(i - w)
			}
			if y < h-1 {
				visit(i + w)
			}
		}

		if len(region) < minRegion {
			for _, i := range region {
				field.Data[i] = invalid
			}
			removed += len(region)
		}
	}
	return removed
}
