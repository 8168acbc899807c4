package stereo

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinPreFilterCap = 1
	MaxPreFilterCap = 63

	MinBlockSize = 5
	MaxBlockSize = 255

	// DisparityStep is the granularity of NumDisparities
	DisparityStep = 16

	// MaxPenalty bounds P1 and P2 so aggregated path costs fit in int32
	MaxPenalty = 1 << 24
)

// ParameterSet holds the matching configuration for one disparity computation.
//
// Setters validate or coerce their own field only. Cross-field constraints
// (P2 > P1, block size vs. image size, fixed-point range) are checked by
// Validate, which Compute calls before doing any work. ParameterSet is a value
// type: Compute works on its own copy.
type ParameterSet struct {
	preFilterCap      int
	blockSize         int
	minDisparity      int
	numDisparities    int
	uniquenessRatio   int
	speckleWindowSize int
	speckleRange      int
	disp12MaxDiff     int
	p1                int
	p2                int
	fullDP            bool

	// blockSizeLimit is the largest block size allowed for the loaded images
	blockSizeLimit int
}

// NewParameterSet returns the tuner's default configuration
func NewParameterSet() ParameterSet {
	return ParameterSet{
		preFilterCap:      42,
		blockSize:         11,
		minDisparity:      -66,
		numDisparities:    128,
		uniquenessRatio:   15,
		speckleWindowSize: 0,
		speckleRange:      0,
		disp12MaxDiff:     -1,
		p1:                120,
		p2:                240,
		fullDP:            false,
		blockSizeLimit:    MaxBlockSize,
	}
}

func (p ParameterSet) PreFilterCap() int      { return p.preFilterCap }
func (p ParameterSet) BlockSize() int         { return p.blockSize }
func (p ParameterSet) MinDisparity() int      { return p.minDisparity }
func (p ParameterSet) NumDisparities() int    { return p.numDisparities }
func (p ParameterSet) UniquenessRatio() int   { return p.uniquenessRatio }
func (p ParameterSet) SpeckleWindowSize() int { return p.speckleWindowSize }
func (p ParameterSet) SpeckleRange() int      { return p.speckleRange }
func (p ParameterSet) Disp12MaxDiff() int     { return p.disp12MaxDiff }
func (p ParameterSet) P1() int                { return p.p1 }
func (p ParameterSet) P2() int                { return p.p2 }
func (p ParameterSet) FullDP() bool           { return p.fullDP }
func (p ParameterSet) BlockSizeLimit() int    { return p.blockSizeLimit }

// SetPreFilterCap sets the pre-filter truncation cap, which must be in [1,63]
func (p *ParameterSet) SetPreFilterCap(v int) error {
	if v < MinPreFilterCap || v > MaxPreFilterCap {
		return paramError("preFilterCap", v, "must be within %d and %d", MinPreFilterCap, MaxPreFilterCap)
	}
	p.preFilterCap = v
	return nil
}

// SetBlockSize sets the matching window side. Even values are lowered by one
// and values above the current limit are clamped to the largest odd value
// within it. Anything that still ends up below MinBlockSize is rejected.
func (p *ParameterSet) SetBlockSize(v int) error {
	if v%2 == 0 {
		v--
	}
	if v > p.blockSizeLimit {
		v = largestOddAtMost(p.blockSizeLimit)
	}
	if v < MinBlockSize {
		return paramError("blockSize", v, "must be odd and at least %d", MinBlockSize)
	}
	p.blockSize = v
	return nil
}

// SetBlockSizeLimit re-derives the block size bound from the loaded image
// dimensions: min(255, width, height), never below 5. The current block size
// is re-clamped when it no longer fits.
func (p *ParameterSet) SetBlockSizeLimit(width, height int) {
	limit := MaxBlockSize
	if width < limit {
		limit = width
	}
	if height < limit {
		limit = height
	}
	if limit < MinBlockSize {
		limit = MinBlockSize
	}
	p.blockSizeLimit = limit
	if p.blockSize > limit {
		p.blockSize = largestOddAtMost(limit)
	}
}

// SetMinDisparity sets the smallest disparity searched; negative values are allowed
func (p *ParameterSet) SetMinDisparity(v int) error {
	p.minDisparity = v
	return nil
}

// SetNumDisparities stores v rounded down to a multiple of 16. Non-positive
// results are kept and rejected later by Validate.
func (p *ParameterSet) SetNumDisparities(v int) error {
	p.numDisparities = floorDiv(v, DisparityStep) * DisparityStep
	return nil
}

// SetUniquenessRatio sets the margin in percent, must be non-negative
func (p *ParameterSet) SetUniquenessRatio(v int) error {
	if v < 0 {
		return paramError("uniquenessRatio", v, "must be non-negative")
	}
	p.uniquenessRatio = v
	return nil
}

// SetSpeckleWindowSize sets the minimum region size kept by speckle filtering; 0 disables it
func (p *ParameterSet) SetSpeckleWindowSize(v int) error {
	if v < 0 {
		return paramError("speckleWindowSize", v, "must be non-negative")
	}
	p.speckleWindowSize = v
	return nil
}

// SetSpeckleRange sets the maximum disparity variation inside a speckle region
func (p *ParameterSet) SetSpeckleRange(v int) error {
	if v < 0 {
		return paramError("speckleRange", v, "must be non-negative")
	}
	p.speckleRange = v
	return nil
}

// SetDisp12MaxDiff sets the left-right check tolerance; negative disables the check
func (p *ParameterSet) SetDisp12MaxDiff(v int) error {
	p.disp12MaxDiff = v
	return nil
}

// SetP1 sets the penalty for disparity changes of one level
func (p *ParameterSet) SetP1(v int) error {
	if v < 0 || v > MaxPenalty {
		return paramError("P1", v, "must be within 0 and %d", MaxPenalty)
	}
	p.p1 = v
	return nil
}

// SetP2 sets the penalty for disparity changes of more than one level
func (p *ParameterSet) SetP2(v int) error {
	if v < 0 || v > MaxPenalty {
		return paramError("P2", v, "must be within 0 and %d", MaxPenalty)
	}
	p.p2 = v
	return nil
}

// SetFullDP selects the 8-path aggregation instead of the 5-path default
func (p *ParameterSet) SetFullDP(v bool) {
	p.fullDP = v
}

// Set applies a parameter-change notification by field name. Names are
// matched case-insensitively and the OpenCV spellings are accepted as aliases.
// fullDP treats any non-zero value as true.
func (p *ParameterSet) Set(name string, value int) error {
	switch strings.ToLower(name) {
	case "prefiltercap":
		return p.SetPreFilterCap(value)
	case "blocksize", "sadwindowsize":
		return p.SetBlockSize(value)
	case "mindisparity":
		return p.SetMinDisparity(value)
	case "numdisparities", "numberofdisparities":
		return p.SetNumDisparities(value)
	case "uniquenessratio":
		return p.SetUniquenessRatio(value)
	case "specklewindowsize":
		return p.SetSpeckleWindowSize(value)
	case "specklerange":
		return p.SetSpeckleRange(value)
	case "disp12maxdiff":
		return p.SetDisp12MaxDiff(value)
	case "p1":
		return p.SetP1(value)
	case "p2":
		return p.SetP2(value)
	case "fulldp":
		p.SetFullDP(value != 0)
		return nil
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameter, name)
	}
}

// ParameterNames lists the canonical names accepted by Set
func ParameterNames() []string {
	return []string{
		"preFilterCap", "blockSize", "minDisparity", "numDisparities",
		"uniquenessRatio", "speckleWindowSize", "speckleRange",
		"disp12MaxDiff", "P1", "P2", "fullDP",
	}
}

// Get returns the current value of a parameter by name, fullDP as 0 or 1
func (p ParameterSet) Get(name string) (int, error) {
	switch strings.ToLower(name) {
	case "prefiltercap":
		return p.preFilterCap, nil
	case "blocksize", "sadwindowsize":
		return p.blockSize, nil
	case "mindisparity":
		return p.minDisparity, nil
	case "numdisparities", "numberofdisparities":
		return p.numDisparities, nil
	case "uniquenessratio":
		return p.uniquenessRatio, nil
	case "specklewindowsize":
		return p.speckleWindowSize, nil
	case "specklerange":
		return p.speckleRange, nil
	case "disp12maxdiff":
		return p.disp12MaxDiff, nil
	case "p1":
		return p.p1, nil
	case "p2":
		return p.p2, nil
	case "fulldp":
		if p.fullDP {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameter, name)
	}
}

// Validate checks every constraint, including those that depend on the image
// size and on more than one field.
func (p ParameterSet) Validate(width, height int) error {
	if p.preFilterCap < MinPreFilterCap || p.preFilterCap > MaxPreFilterCap {
		return paramError("preFilterCap", p.preFilterCap, "must be within %d and %d", MinPreFilterCap, MaxPreFilterCap)
	}
	if p.blockSize%2 == 0 || p.blockSize < MinBlockSize || p.blockSize > MaxBlockSize {
		return paramError("blockSize", p.blockSize, "must be odd and within %d and %d", MinBlockSize, MaxBlockSize)
	}
	if p.blockSize > width || p.blockSize > height {
		return paramError("blockSize", p.blockSize, "exceeds image size %dx%d", width, height)
	}
	if p.numDisparities <= 0 || p.numDisparities%DisparityStep != 0 {
		return paramError("numDisparities", p.numDisparities, "must be a positive multiple of %d", DisparityStep)
	}
	lo := (p.minDisparity - 1) * 16
	hi := (p.minDisparity+p.numDisparities)*16 - 1
	if lo < math.MinInt16 || hi > math.MaxInt16 {
		return paramError("minDisparity", p.minDisparity, "disparity range [%d,%d) does not fit 16-bit fixed point",
			p.minDisparity, p.minDisparity+p.numDisparities)
	}
	if p.uniquenessRatio < 0 {
		return paramError("uniquenessRatio", p.uniquenessRatio, "must be non-negative")
	}
	if p.speckleWindowSize < 0 {
		return paramError("speckleWindowSize", p.speckleWindowSize, "must be non-negative")
	}
	if p.speckleRange < 0 {
		return paramError("speckleRange", p.speckleRange, "must be non-negative")
	}
	if p.p1 < 0 || p.p1 > MaxPenalty {
		return paramError("P1", p.p1, "must be within 0 and %d", MaxPenalty)
	}
	if p.p2 < 0 || p.p2 > MaxPenalty {
		return paramError("P2", p.p2, "must be within 0 and %d", MaxPenalty)
	}
	if p.p2 <= p.p1 {
		return paramError("P2", p.p2, "must be greater than P1=%d", p.p1)
	}
	return nil
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("preFilterCap=%d blockSize=%d minDisparity=%d numDisparities=%d uniquenessRatio=%d "+
		"speckleWindowSize=%d speckleRange=%d disp12MaxDiff=%d P1=%d P2=%d fullDP=%t",
		p.preFilterCap, p.blockSize, p.minDisparity, p.numDisparities, p.uniquenessRatio,
		p.speckleWindowSize, p.speckleRange, p.disp12MaxDiff, p.p1, p.p2, p.fullDP)
}

func largestOddAtMost(v int) int {
	if v%2 == 0 {
		return v - 1
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
