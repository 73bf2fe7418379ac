package topomap_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnknownOlympus/chil/internal/topomap"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 12, 7))
	for x := range 12 {
		img.Set(x, 3, color.RGBA{R: 0xff, A: 0xff})
	}
	return img
}

func TestSave(t *testing.T) {
	defer filet.CleanUp(t)
	dir := filet.TmpDir(t, "")

	t.Run("png in a missing folder", func(t *testing.T) {
		folder := filepath.Join(dir, "maps", "umbria")
		path, err := topomap.Save(sampleImage(), folder, "assisi", "png")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(folder, "assisi.png"), path)

		file, err := os.Open(path)
		require.NoError(t, err)
		defer file.Close()

		img, err := png.Decode(file)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())
	})

	t.Run("webp", func(t *testing.T) {
		path, err := topomap.Save(sampleImage(), dir, "assisi", "WEBP")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "assisi.webp"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		img, err := webp.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 12, img.Bounds().Dx())
		assert.Equal(t, 7, img.Bounds().Dy())
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := topomap.Save(sampleImage(), dir, "assisi", "gif")
		require.ErrorIs(t, err, topomap.ErrUnsupportedFormat)
		assert.False(t, filet.Exists(t, filepath.Join(dir, "assisi.gif")))
	})
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, topomap.IsSupportedFormat("png"))
	assert.True(t, topomap.IsSupportedFormat("PNG"))
	assert.True(t, topomap.IsSupportedFormat("webp"))
	assert.False(t, topomap.IsSupportedFormat("jpeg"))
	assert.False(t, topomap.IsSupportedFormat(""))
}
