package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"pointerheat/internal/service"
	"pointerheat/internal/topology"
)

const (
	marginSide   = 20
	marginTop    = 36
	marginBottom = 30

	// DefaultImageWidth is used when Options.Width is not set
	DefaultImageWidth = 1400
)

var (
	textColor    = color.RGBA{R: 235, G: 235, B: 235, A: 255}
	overlayColor = color.RGBA{R: 255, G: 255, B: 255, A: 200}
)

// Options controls PNG rendering
type Options struct {
	// Width is the total image width in pixels; the height follows the desktop aspect ratio
	Width int

	// Smoothing is the gaussian sigma in cells (0 draws raw counts)
	Smoothing float64
}

// FileName returns the export file name for t
func FileName(t time.Time) string {
	return "pointer_heatmap_" + t.Format("20060102_150405") + ".png"
}

// StatsLine summarizes a visualization in one line
func StatsLine(v *service.Visualization) string {
	return fmt.Sprintf("Total Points: %d | Resolution: %dx%d | Screens: %d",
		v.Samples, v.Grid.ResolutionX, v.Grid.ResolutionY, len(v.Regions))
}

// Heatmap draws v onto a new image
func Heatmap(v *service.Visualization, opts Options) *image.RGBA {
	width := opts.Width
	if width <= 0 {
		width = DefaultImageWidth
	}
	plotW := width - 2*marginSide
	if plotW < 1 {
		plotW = 1
	}
	plotH := plotW * v.Bounds.Height() / v.Bounds.Width()
	if plotH < 1 {
		plotH = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, width, marginTop+plotH+marginBottom))
	draw.Draw(img, img.Bounds(), image.NewUniform(RGBA(Background)), image.Point{}, draw.Src)

	plot := image.Rect(marginSide, marginTop, marginSide+plotW, marginTop+plotH)
	drawDensity(img, plot, normalize(v.Grid.Smooth(opts.Smoothing)))

	if len(v.Regions) > 1 {
		for _, r := range v.Regions {
			rect := regionRect(r, v.Bounds, plot)
			dashedRect(img, rect, overlayColor, 8)
			if r.Name != "" {
				drawText(img, r.Name, rect.Min.X+6, rect.Min.Y+16, overlayColor)
			}
		}
	}

	drawText(img, fmt.Sprintf("Pointer Heatmap (%d samples)", v.Samples), marginSide, 22, textColor)
	drawText(img, StatsLine(v), marginSide, img.Bounds().Max.Y-10, textColor)
	return img
}

// WritePNG encodes the heatmap of v to w
func WritePNG(w io.Writer, v *service.Visualization, opts Options) error {
	return png.Encode(w, Heatmap(v, opts))
}

// ExportPNG writes the heatmap of v into dir under a timestamped name and
// returns the file path
func ExportPNG(dir string, v *service.Visualization, opts Options, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WritePNG(f, v, opts); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	log.Printf("Render: Heatmap saved as %s", path)
	return path, nil
}

// drawDensity paints values (indexed [x][y]) over plot, one block per cell
func drawDensity(img *image.RGBA, plot image.Rectangle, values [][]float64) {
	rx := len(values)
	if rx == 0 {
		return
	}
	ry := len(values[0])
	w, h := plot.Dx(), plot.Dy()

	for py := 0; py < h; py++ {
		j := py * ry / h
		for px := 0; px < w; px++ {
			i := px * rx / w
			t := values[i][j]
			if t <= 0 {
				continue
			}
			img.SetRGBA(plot.Min.X+px, plot.Min.Y+py, RGBA(Colormap(t)))
		}
	}
}

// regionRect maps a desktop region into plot pixels
func regionRect(r topology.Region, b topology.Bounds, plot image.Rectangle) image.Rectangle {
	sx := float64(plot.Dx()) / float64(b.Width())
	sy := float64(plot.Dy()) / float64(b.Height())
	x0 := plot.Min.X + int(float64(r.X-b.MinX)*sx)
	y0 := plot.Min.Y + int(float64(r.Y-b.MinY)*sy)
	x1 := plot.Min.X + int(float64(r.Right()-b.MinX)*sx)
	y1 := plot.Min.Y + int(float64(r.Bottom()-b.MinY)*sy)
	return image.Rect(x0, y0, x1-1, y1-1)
}

// dashedRect outlines rect with dashes of the given length
func dashedRect(img *image.RGBA, rect image.Rectangle, c color.RGBA, dash int) {
	on := func(k int) bool { return (k/dash)%2 == 0 }
	for x := rect.Min.X; x <= rect.Max.X; x++ {
		if on(x - rect.Min.X) {
			img.SetRGBA(x, rect.Min.Y, c)
			img.SetRGBA(x, rect.Max.Y, c)
		}
	}
	for y := rect.Min.Y; y <= rect.Max.Y; y++ {
		if on(y - rect.Min.Y) {
			img.SetRGBA(rect.Min.X, y, c)
			img.SetRGBA(rect.Max.X, y, c)
		}
	}
}

func drawText(img *image.RGBA, text string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
