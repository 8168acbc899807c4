package main

import (
	"bytes"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbmtuner/internal/models"
	"sgbmtuner/pkg/config"
	"sgbmtuner/pkg/imageio"
	"sgbmtuner/pkg/stereo"
	"sgbmtuner/pkg/tuner"
)

func testPair() (*models.Image, *models.Image) {
	rng := rand.New(rand.NewSource(3))
	left := models.NewImage(32, 24)
	for i := range left.Pix {
		left.Pix[i] = uint8(rng.Intn(256))
	}
	right := models.NewImage(32, 24)
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			right.Set(x, y, left.At(min(x+2, 31), y))
		}
	}
	return left, right
}

func readySession(t *testing.T) *tuner.Session {
	left, right := testPair()
	p := stereo.NewParameterSet()
	require.NoError(t, p.SetBlockSize(5))
	require.NoError(t, p.SetMinDisparity(0))
	require.NoError(t, p.SetNumDisparities(16))

	s := tuner.NewSession(p, nil)
	_, err := s.LoadLeft(left)
	require.NoError(t, err)
	_, err = s.LoadRight(right)
	require.NoError(t, err)
	return s
}

func TestSettingsFlag(t *testing.T) {
	var s settings
	require.NoError(t, s.Set("P1=100"))
	require.NoError(t, s.Set(" blockSize = 7"))
	assert.Equal(t, "P1=100,blockSize=7", s.String())

	assert.Error(t, s.Set("P1"))
	assert.Error(t, s.Set("P1=abc"))
}

func TestParsePreview(t *testing.T) {
	w, h, err := parsePreview("800x600")
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	for _, bad := range []string{"800", "ax600", "800xb"} {
		_, _, err := parsePreview(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunInteractive(t *testing.T) {
	s := readySession(t)
	var saved int
	save := func(res *tuner.Result) error {
		require.NotNil(t, res)
		saved++
		return nil
	}

	input := strings.Join([]string{
		"uniquenessRatio 5",
		"",
		"preFilterCap 0",
		"P2 abc",
		"too many words",
		"params",
		"P2 600",
		"quit",
		"P1 1",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, runInteractive(strings.NewReader(input), &out, s, save))

	assert.Equal(t, 2, saved)
	assert.Equal(t, 5, s.Params().UniquenessRatio())
	assert.Equal(t, 600, s.Params().P2())
	assert.Equal(t, 120, s.Params().P1(), "input after quit is ignored")
	assert.Contains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "invalid value")
	assert.Contains(t, out.String(), "speckleWindowSize")
}

func TestRunInteractiveEOF(t *testing.T) {
	s := readySession(t)
	var out bytes.Buffer
	err := runInteractive(strings.NewReader("P1 10"), &out, s, func(*tuner.Result) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 10, s.Params().P1())
}

func TestOutputWrite(t *testing.T) {
	s := readySession(t)
	path := filepath.Join(t.TempDir(), "out", "map.png")

	o := &output{path: path, rgb: true, previewWidth: 16, previewHeight: 16}
	require.NoError(t, o.write(s.Last()))
	require.NoError(t, o.write(nil))

	_, err := os.Stat(path)
	require.NoError(t, err)
	img, err := imageio.LoadGray(path)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Width)
	assert.Equal(t, 12, img.Height)
}

// writeRunInputs saves a test pair and a config that logs to a file
func writeRunInputs(t *testing.T) (dir string, opts options) {
	dir = t.TempDir()
	left, right := testPair()
	require.NoError(t, imageio.SaveGray(filepath.Join(dir, "left.png"), left))
	require.NoError(t, imageio.SaveGray(filepath.Join(dir, "right.png"), right))

	cfg := config.DefaultConfig()
	cfg.Matching.BlockSize = 5
	cfg.Matching.MinDisparity = 0
	cfg.Matching.NumDisparities = 16
	cfg.Output.Path = filepath.Join(dir, "disparity.png")
	cfg.Logging.File = filepath.Join(dir, "logs", "sgbmtuner.log")
	cfg.Sweep.OutputDir = filepath.Join(dir, "sweep")
	require.NoError(t, config.SaveConfig(cfg, filepath.Join(dir, "sgbmtuner.yaml")))

	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return dir, options{
		leftPath:   filepath.Join(dir, "left.png"),
		rightPath:  filepath.Join(dir, "right.png"),
		configPath: filepath.Join(dir, "sgbmtuner.yaml"),
		rgb:        true,
		explicit:   map[string]bool{},
	}
}

func TestRunSingle(t *testing.T) {
	dir, opts := writeRunInputs(t)

	var out bytes.Buffer
	require.NoError(t, run(opts, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Disparity computed")

	_, err := os.Stat(filepath.Join(dir, "disparity.png"))
	assert.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "logs", "sgbmtuner.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Loaded 32x24 left and 32x24 right images")
}

func TestRunReturnsErrors(t *testing.T) {
	_, opts := writeRunInputs(t)
	var out bytes.Buffer

	missing := opts
	missing.rightPath = filepath.Join(t.TempDir(), "nope.png")
	assert.ErrorContains(t, run(missing, strings.NewReader(""), &out), "failed to load right image")

	noLeft := opts
	noLeft.leftPath = ""
	assert.ErrorIs(t, run(noLeft, strings.NewReader(""), &out), errUsage)

	badSet := opts
	badSet.overrides = settings{{name: "preFilterCap", value: 0}}
	assert.ErrorIs(t, run(badSet, strings.NewReader(""), &out), stereo.ErrInvalidParameter)

	badPreview := opts
	badPreview.preview = "wide"
	badPreview.explicit = map[string]bool{"preview": true}
	assert.ErrorContains(t, run(badPreview, strings.NewReader(""), &out), "invalid -preview")
}

func TestRunSweep(t *testing.T) {
	dir, opts := writeRunInputs(t)
	opts.sweepSpec = "P2=240,480"
	opts.workers = 2
	opts.explicit = map[string]bool{"workers": true}

	var out bytes.Buffer
	require.NoError(t, run(opts, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "P2-480")

	_, err := os.Stat(filepath.Join(dir, "sweep", "002_P2-480.png"))
	assert.NoError(t, err)
}

func TestRunInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	var out bytes.Buffer
	require.NoError(t, run(options{configPath: path, initConfig: true}, strings.NewReader(""), &out))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Matching, cfg.Matching)
}
