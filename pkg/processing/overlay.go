package processing

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// OverlayOptions controls how debug overlays are written
type OverlayOptions struct {
	Format   string // png, jpg or webp
	Quality  int
	Lossless bool
}

// CreateDebugOverlay draws the detected face, the crop rectangle and a label
// on a copy of img. Either box may be nil.
func (p *Processor) CreateDebugOverlay(img image.Image, face *types.BoundingBox, crop *types.CropRect, label string) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	gold := color.NRGBA{255, 204, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	if face != nil {
		drawRect(nrgba, face.Rect(), green, stroke)
	}
	if crop != nil {
		drawRect(nrgba, crop.Rect(), gold, stroke)
	}
	if label != "" {
		drawLabel(nrgba, label, 4, 4)
	}

	return nrgba
}

// OverlayExt returns the file extension for an overlay format
func OverlayExt(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return ".jpg"
	case "webp":
		return ".webp"
	default:
		return ".png"
	}
}

// SaveOverlay writes a debug overlay in the requested format
func (p *Processor) SaveOverlay(img image.Image, path string, opts OverlayOptions) error {
	switch strings.ToLower(opts.Format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(opts.Quality))
	default:
		return imaging.Save(img, path)
	}
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

// drawLabel renders white text on a black strip at (x, y)
func drawLabel(img *image.NRGBA, text string, x, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 255}),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()

	bg := color.NRGBA{0, 0, 0, 255}
	for row := y; row < y+height+4; row++ {
		drawHLine(img, row, x, x+width+4, bg)
	}

	d.Dot = fixed.P(x+2, y+2+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

// OverlayPath returns where the overlay for a file at rel (relative to the
// input root) is written under dir. The source extension is kept, so a.png and
// a.jpg in the same directory get distinct overlays.
func OverlayPath(dir, rel, format string) string {
	return filepath.Join(dir, rel+OverlayExt(format))
}
