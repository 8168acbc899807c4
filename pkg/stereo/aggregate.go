package stereo

import "math"

// direction is a 1-D aggregation path. The predecessor of (x, y) on the path
// is (x-dx, y-dy).
type direction struct {
	dx, dy int
}

var (
	// singlePassPaths can be evaluated in one top-to-bottom sweep
	singlePassPaths = []direction{
		{1, 0}, {-1, 0}, // horizontal, both ways
		{1, 1}, {0, 1}, {-1, 1}, // from the row above
	}

	// bottomPaths complete the 8-neighbourhood for full dynamic programming
	bottomPaths = []direction{
		{1, -1}, {0, -1}, {-1, -1},
	}
)

// pathsFor returns the aggregation directions for the selected mode
func pathsFor(fullDP bool) []direction {
	if !fullDP {
		return singlePassPaths
	}
	paths := make([]direction, 0, len(singlePassPaths)+len(bottomPaths))
	paths = append(paths, singlePassPaths...)
	return append(paths, bottomPaths...)
}

// aggregate sums the semi-global path costs of every direction into a new volume
func aggregate(cost *costVolume, p ParameterSet) *costVolume {
	sum := newCostVolume(cost.width, cost.height, cost.depth)
	p1, p2 := int32(p.p1), int32(p.p2)
	for _, dir := range pathsFor(p.fullDP) {
		if dir.dy == 0 {
			aggregateRows(cost, sum, dir.dx, p1, p2)
		} else {
			aggregateColumns(cost, sum, dir, p1, p2)
		}
	}
	return sum
}

// aggregateRows handles the horizontal paths, scanning each row in the path direction
func aggregateRows(cost, sum *costVolume, dx int, p1, p2 int32) {
	w, h, depth := cost.width, cost.height, cost.depth
	prev := make([]int32, depth)
	cur := make([]int32, depth)

	start, end := 0, w
	if dx < 0 {
		start, end = w-1, -1
	}
	for y := 0; y < h; y++ {
		var prevMin int32
		for x := start; x != end; x += dx {
			c := cost.at(x, y)
			if x == start {
				prevMin = copyMin(cur, c)
			} else {
				prevMin = pathStep(cur, c, prev, prevMin, p1, p2)
			}
			accumulate(sum.at(x, y), cur)
			prev, cur = cur, prev
		}
	}
}

// aggregateColumns handles paths with a vertical component. Rows are visited
// in the path direction so the predecessor row is always complete.
func aggregateColumns(cost, sum *costVolume, dir direction, p1, p2 int32) {
	w, h, depth := cost.width, cost.height, cost.depth
	prevRow := make([]int32, w*depth)
	curRow := make([]int32, w*depth)
	prevMins := make([]int32, w)
	curMins := make([]int32, w)

	start, end := 0, h
	if dir.dy < 0 {
		start, end = h-1, -1
	}
	for y := start; y != end; y += dir.dy {
		for x := 0; x < w; x++ {
			c := cost.at(x, y)
			out := curRow[x*depth : (x+1)*depth]
			px := x - dir.dx
			if y == start || px < 0 || px >= w {
				curMins[x] = copyMin(out, c)
			} else {
				curMins[x] = pathStep(out, c, prevRow[px*depth:(px+1)*depth], prevMins[px], p1, p2)
			}
			accumulate(sum.at(x, y), out)
		}
		prevRow, curRow = curRow, prevRow
		prevMins, curMins = curMins, prevMins
	}
}

// pathStep evaluates
//
//	Lr(p,d) = C(p,d) + min(Lr(q,d), Lr(q,d-1)+P1, Lr(q,d+1)+P1, min_k Lr(q,k)+P2) - min_k Lr(q,k)
//
// for predecessor q, writing into out and returning min_d Lr(p,d).
func pathStep(out, c, prev []int32, prevMin, p1, p2 int32) int32 {
	depth := len(c)
	jump := prevMin + p2
	best := int32(math.MaxInt32)
	for d := 0; d < depth; d++ {
		v := prev[d]
		if d > 0 && prev[d-1]+p1 < v {
			v = prev[d-1] + p1
		}
		if d < depth-1 && prev[d+1]+p1 < v {
			v = prev[d+1] + p1
		}
		if jump < v {
			v = jump
		}
		v = c[d] + v - prevMin
		out[d] = v
		if v < best {
			best = v
		}
	}
	return best
}

// copyMin starts a path: Lr equals the matching cost
func copyMin(out, c []int32) int32 {
	best := int32(math.MaxInt32)
	for d, v := range c {
		out[d] = v
		if v < best {
			best = v
		}
	}
	return best
}

func accumulate(dst, src []int32) {
	for d, v := range src {
		dst[d] += v
	}
}
