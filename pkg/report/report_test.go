package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"brenoafb.com/contiguous-filesystem/pkg/fs"
)

func testLayout(t *testing.T) []fs.Usage {
	v, err := fs.New(64, 302)
	require.NoError(t, err)
	_, err = v.Write("a", bytes.Repeat([]byte("a"), 100))
	require.NoError(t, err)
	return v.Layout()
}

func TestWriteBitmap(t *testing.T) {
	layout := []fs.Usage{
		{Kind: fs.UsageAllocationTable},
		{Kind: fs.UsageDirectory},
		{Kind: fs.UsageFile, Name: "a", Slot: 1},
		{Kind: fs.UsageFree},
	}
	var out strings.Builder
	require.NoError(t, WriteBitmap(&out, layout))
	require.Equal(t, "Allocation bitmap (0 = free, 1 = busy)\n\n1 1 1 0 \n", out.String())

	out.Reset()
	require.NoError(t, WriteBitmap(&out, testLayout(t)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// title, blank line, then 302 clusters at 20 per line
	require.Len(t, lines, 2+16)
	// clusters 280 to 299: tables up to 293, then a in 294 and 295
	require.Equal(t, strings.TrimSpace(strings.Repeat("1 ", 16)+strings.Repeat("0 ", 4)), lines[len(lines)-2])
	require.Equal(t, "0 0", strings.TrimSpace(lines[len(lines)-1]))
}

func TestClusterMap(t *testing.T) {
	layout := testLayout(t)

	var buf bytes.Buffer
	require.NoError(t, WriteClusterMap(&buf, layout, "disk.img"))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	w, h := Size(len(layout))
	require.Equal(t, w, img.Bounds().Dx())
	require.Equal(t, h, img.Bounds().Dy())

	pixel := func(cluster int) [3]uint32 {
		x, y := Cell(cluster)
		r, g, b, _ := img.At(x+cellSize/2, y+cellSize/2).RGBA()
		return [3]uint32{r, g, b}
	}
	require.NotEqual(t, pixel(0), pixel(100))
	require.NotEqual(t, pixel(294), pixel(301))
	require.Equal(t, pixel(294), pixel(295))
	require.Equal(t, pixel(300), pixel(301))
}

func TestSaveClusterMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, SaveClusterMap(path, testLayout(t), "disk.img"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)
}
