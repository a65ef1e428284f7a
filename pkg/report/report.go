// Package report renders the cluster usage of a volume.
package report

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"

	"brenoafb.com/contiguous-filesystem/pkg/fs"
)

const (
	// BitsPerLine is how many clusters WriteBitmap prints per line.
	BitsPerLine = 20

	columns  = 32
	cellSize = 16
	margin   = 10
	header   = 40
	legendH  = 20
)

// WriteBitmap prints the allocation bitmap, 1 for busy clusters and 0 for
// free ones.
func WriteBitmap(w io.Writer, layout []fs.Usage) error {
	if _, err := fmt.Fprintf(w, "Allocation bitmap (0 = free, 1 = busy)\n\n"); err != nil {
		return err
	}
	for i, u := range layout {
		bit := 1
		if u.Kind == fs.UsageFree {
			bit = 0
		}
		sep := " "
		if (i+1)%BitsPerLine == 0 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%d%s", bit, sep); err != nil {
			return err
		}
	}
	if len(layout)%BitsPerLine != 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

type rgb struct{ r, g, b float64 }

var (
	colorTable     = rgb{0.2, 0.4, 0.6}
	colorDirectory = rgb{0.3, 0.3, 0.3}
	colorFree      = rgb{1, 1, 1}
	colorLeaked    = rgb{0.9, 0.1, 0.1}

	// files cycle through these by slot
	filePalette = []rgb{
		{0.95, 0.6, 0.2},
		{0.4, 0.75, 0.35},
		{0.6, 0.45, 0.8},
		{0.95, 0.85, 0.3},
		{0.3, 0.75, 0.8},
	}
)

func colorOf(u fs.Usage) rgb {
	switch u.Kind {
	case fs.UsageAllocationTable:
		return colorTable
	case fs.UsageDirectory:
		return colorDirectory
	case fs.UsageFile:
		return filePalette[u.Slot%len(filePalette)]
	case fs.UsageLeaked:
		return colorLeaked
	}
	return colorFree
}

// Size returns the dimensions in pixels of the cluster map of n clusters.
func Size(n int) (int, int) {
	rows := (n + columns - 1) / columns
	return 2*margin + columns*cellSize, header + rows*cellSize + 2*margin + legendH
}

// Cell returns the pixel at the top left corner of cluster i's cell.
func Cell(i int) (int, int) {
	return margin + (i%columns)*cellSize, header + (i/columns)*cellSize
}

// ClusterMap draws one cell per cluster, coloured by what the cluster
// holds.
func ClusterMap(layout []fs.Usage, title string) *gg.Context {
	w, h := Size(len(layout))
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.2, 0.4, 0.6)
	dc.DrawRectangle(0, 0, float64(w), header-margin)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(title, float64(w)/2, float64(header-margin)/2, 0.5, 0.5)

	dc.SetLineWidth(1)
	for i, u := range layout {
		x, y := Cell(i)
		c := colorOf(u)
		dc.SetRGB(c.r, c.g, c.b)
		dc.DrawRectangle(float64(x), float64(y), cellSize, cellSize)
		dc.Fill()
		dc.SetRGB(0.6, 0.6, 0.6)
		dc.DrawRectangle(float64(x)+0.5, float64(y)+0.5, cellSize-1, cellSize-1)
		dc.Stroke()
	}

	legend := []struct {
		label string
		c     rgb
	}{
		{"table", colorTable},
		{"directory", colorDirectory},
		{"file", filePalette[0]},
		{"free", colorFree},
		{"leaked", colorLeaked},
	}
	x := float64(margin)
	y := float64(h - margin - legendH)
	for _, l := range legend {
		dc.SetRGB(l.c.r, l.c.g, l.c.b)
		dc.DrawRectangle(x, y+4, 12, 12)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawString(l.label, x+16, y+14)
		x += 16 + float64(len(l.label))*7 + 12
	}

	return dc
}

// WriteClusterMap encodes the cluster map as PNG.
func WriteClusterMap(w io.Writer, layout []fs.Usage, title string) error {
	if err := ClusterMap(layout, title).EncodePNG(w); err != nil {
		return fmt.Errorf("error encoding cluster map: %w", err)
	}
	return nil
}

// SaveClusterMap writes the cluster map as a PNG file.
func SaveClusterMap(path string, layout []fs.Usage, title string) error {
	if err := ClusterMap(layout, title).SavePNG(path); err != nil {
		return fmt.Errorf("error saving cluster map: %w", err)
	}
	return nil
}
