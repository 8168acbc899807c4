package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbmtuner/internal/models"
)

func TestFromImageGray(t *testing.T) {
	src := image.NewGray(image.Rect(2, 3, 6, 5))
	for y := 3; y < 5; y++ {
		for x := 2; x < 6; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(10*x + y)})
		}
	}

	img := FromImage(src)

	require.Equal(t, 4, img.Width)
	require.Equal(t, 2, img.Height)
	assert.Equal(t, uint8(23), img.At(0, 0))
	assert.Equal(t, uint8(54), img.At(3, 1))
}

func TestFromImageColorUsesLuma(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})

	img := FromImage(src)

	assert.Equal(t, uint8(255), img.At(0, 0))
	want := color.GrayModel.Convert(color.NRGBA{G: 255, A: 255}).(color.Gray).Y
	assert.Equal(t, want, img.At(1, 0))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := models.NewImage(8, 6)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 5)
	}

	path := filepath.Join(dir, "nested", "left.png")
	require.NoError(t, SaveGray(path, img))

	loaded, err := LoadGray(path)
	require.NoError(t, err)
	assert.Equal(t, img.Width, loaded.Width)
	assert.Equal(t, img.Height, loaded.Height)
	assert.Equal(t, img.Pix, loaded.Pix)
}

func TestLoadGrayMissingFile(t *testing.T) {
	_, err := LoadGray(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestSaveDisplayMapRGB(t *testing.T) {
	dir := t.TempDir()
	m := &models.DisplayMap{Width: 2, Height: 1, Pix: []uint8{0, 200}}

	path := filepath.Join(dir, "map.png")
	require.NoError(t, SaveDisplayMap(path, m, true))

	decoded, err := imaging.Open(path)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(1, 0).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
	assert.Equal(t, uint32(200)*0x101, r)
}

func TestSaveDisparity(t *testing.T) {
	f := models.NewDisparityField(2, 1, 0, 16)
	f.Data[1] = 32

	path := filepath.Join(t.TempDir(), "raw.png")
	require.NoError(t, SaveDisparity(path, f))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	decoded, err := imaging.Open(path)
	require.NoError(t, err)
	g, ok := decoded.(*image.Gray16)
	require.True(t, ok, "expected a 16-bit image, got %T", decoded)
	assert.Equal(t, uint16(0), g.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(48), g.Gray16At(1, 0).Y)
}

func TestFit(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 400, 200))

	out := Fit(src, 100, 100)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	assert.Same(t, src, Fit(src, 1000, 1000))
	assert.Same(t, src, Fit(src, 0, 100))
}
