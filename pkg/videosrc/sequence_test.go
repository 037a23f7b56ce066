package videosrc

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, filename string, w, h int, c color.RGBA) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(filename)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestImageSequence(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame-002.png"), 64, 32, color.RGBA{0, 255, 0, 255})
	writePNG(t, filepath.Join(dir, "frame-001.png"), 64, 32, color.RGBA{255, 0, 0, 255})
	writePNG(t, filepath.Join(dir, "frame-003.png"), 128, 64, color.RGBA{0, 0, 255, 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	seq, err := OpenImageSequence(dir, 10, 64)
	require.NoError(t, err)
	defer seq.Close()
	require.Equal(t, 3, seq.Len())

	f, err := seq.Next()
	require.NoError(t, err)
	require.Equal(t, int64(0), f.Index)
	require.Equal(t, color.RGBA{255, 0, 0, 255}, f.Image.RGBAAt(5, 5))

	f, err = seq.Next()
	require.NoError(t, err)
	require.Equal(t, 100*time.Millisecond, f.PTS)

	// Downscaled to maxWidth
	f, err = seq.Next()
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 32), f.Image.Bounds())

	_, err = seq.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestImageSequenceEmpty(t *testing.T) {
	_, err := OpenImageSequence(t.TempDir(), 10, 0)
	require.Error(t, err)
}

func TestBlank(t *testing.T) {
	b := NewBlank("test", 320, 240, 2, 0)
	require.Equal(t, "test", b.ID())
	f, err := b.Next()
	require.NoError(t, err)
	require.Equal(t, 240, f.Image.Bounds().Dy())
	_, err = b.Next()
	require.NoError(t, err)
	_, err = b.Next()
	require.ErrorIs(t, err, io.EOF)
}
