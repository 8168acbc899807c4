package tuner

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbmtuner/internal/models"
	"sgbmtuner/pkg/stereo"
)

// createTestPair creates a textured pair where the right view is shifted by s
func createTestPair(width, height, s int) (*models.Image, *models.Image) {
	rng := rand.New(rand.NewSource(42))
	left := models.NewImage(width, height)
	for i := range left.Pix {
		left.Pix[i] = uint8(rng.Intn(256))
	}
	right := models.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			right.Set(x, y, left.At(min(x+s, width-1), y))
		}
	}
	return left, right
}

func smallParams(t *testing.T) stereo.ParameterSet {
	p := stereo.NewParameterSet()
	require.NoError(t, p.SetBlockSize(5))
	require.NoError(t, p.SetMinDisparity(0))
	require.NoError(t, p.SetNumDisparities(16))
	return p
}

func TestSessionWaitsForBothImages(t *testing.T) {
	left, _ := createTestPair(32, 32, 2)
	s := NewSession(smallParams(t), nil)

	res, err := s.LoadLeft(left)
	require.NoError(t, err)
	assert.Nil(t, res, "nothing to compute with one image")
	assert.False(t, s.Ready())

	res, err = s.SetParam("uniquenessRatio", 5)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 5, s.Params().UniquenessRatio())

	_, err = s.Process()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSessionRecomputesOnEveryChange(t *testing.T) {
	left, right := createTestPair(40, 32, 3)
	s := NewSession(smallParams(t), nil)

	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	res, err := s.LoadRight(right)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 40, res.Map.Width)
	assert.Equal(t, 32, res.Map.Height)
	assert.Greater(t, res.Stats.Valid, 0)
	assert.InDelta(t, 3.0, res.Stats.Mean, 1.0)

	res2, err := s.SetParam("P2", 500)
	require.NoError(t, err)
	require.NotNil(t, res2)
	assert.NotSame(t, res, res2)
	assert.Equal(t, 500, res2.Params.P2())
	assert.Same(t, res2, s.Last())
}

func TestSessionRejectedParameterKeepsState(t *testing.T) {
	left, right := createTestPair(32, 32, 2)
	s := NewSession(smallParams(t), nil)
	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	first, err := s.LoadRight(right)
	require.NoError(t, err)

	_, err = s.SetParam("preFilterCap", 0)
	assert.ErrorIs(t, err, stereo.ErrInvalidParameter)
	assert.Equal(t, 42, s.Params().PreFilterCap())

	// P2 below P1 is accepted by the setter but fails the run
	_, err = s.SetParam("P2", 10)
	assert.ErrorIs(t, err, stereo.ErrInvalidParameter)
	assert.Same(t, first, s.Last(), "the last good result stays available")
}

func TestSessionSizeMismatch(t *testing.T) {
	left, _ := createTestPair(32, 32, 2)
	_, other := createTestPair(30, 32, 2)
	s := NewSession(smallParams(t), nil)

	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	_, err = s.LoadRight(other)
	assert.ErrorIs(t, err, stereo.ErrImageSizeMismatch)
	assert.Nil(t, s.Last())
}

func TestSessionBlockSizeBoundFollowsImages(t *testing.T) {
	p := smallParams(t)
	require.NoError(t, p.SetBlockSize(101))
	s := NewSession(p, nil)

	left, right := createTestPair(40, 24, 2)
	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	assert.Equal(t, 24, s.Params().BlockSizeLimit())
	assert.Equal(t, 23, s.Params().BlockSize())

	res, err := s.LoadRight(right)
	require.NoError(t, err)
	require.NotNil(t, res)

	_, err = s.SetParam("blockSize", 200)
	require.NoError(t, err)
	assert.Equal(t, 23, s.Params().BlockSize())
}

func TestSessionSavesIntermediaryResults(t *testing.T) {
	dir := t.TempDir()
	left, right := createTestPair(32, 32, 2)
	s := NewSession(smallParams(t), &Params{SaveIntermediaryResults: true, IntermediaryDir: dir})

	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	_, err = s.LoadRight(right)
	require.NoError(t, err)

	for _, name := range []string{
		"01_left_prefiltered.png",
		"02_right_prefiltered.png",
		"03_disparity_raw.png",
		"04_disparity_display.png",
	} {
		_, err := os.Stat(filepath.Join(dir, "run_001", name))
		assert.NoError(t, err, name)
	}
}
