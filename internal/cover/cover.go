// Package cover rasterizes a portrait mosaic from an export's downloaded
// images and overlays a caption band, producing the JPEG used as the
// EPUB cover.
package cover

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	coverWidth  = 600
	coverHeight = 800

	gridCols  = 2
	maxTiles  = 8
	captionPx = 100

	jpegQuality = 85
)

// ErrNoImages is returned when no usable image was available; callers
// export without a cover rather than failing the archive.
var ErrNoImages = errors.New("cover: no usable images")

// backgroundColor is the solid fill visible behind partial grids.
var backgroundColor = color.RGBA{0x2c, 0x3e, 0x50, 0xff}

// Compose draws up to eight images in a two-column grid on a 600x800
// canvas, each scaled cover-fit and centered in its cell, then overlays
// the caption and date on a semi-opaque band across the bottom.
// Undecodable images are skipped; log receives one line per skip.
func Compose(imgs [][]byte, caption, dateText string, log io.Writer) ([]byte, error) {
	if log == nil {
		log = io.Discard
	}

	decoded := make([]image.Image, 0, maxTiles)
	for i, data := range imgs {
		if len(decoded) == maxTiles {
			break
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			fmt.Fprintf(log, "Warning: cover tile %d undecodable: %v\n", i+1, err)
			continue
		}
		decoded = append(decoded, img)
	}
	if len(decoded) == 0 {
		return nil, ErrNoImages
	}

	canvas := image.NewRGBA(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	rows := (len(decoded) + gridCols - 1) / gridCols
	cellW := coverWidth / gridCols
	cellH := coverHeight / rows

	for i, img := range decoded {
		col := i % gridCols
		row := i / gridCols
		cell := image.Rect(col*cellW, row*cellH, (col+1)*cellW, (row+1)*cellH)
		drawCoverFit(canvas, cell, img)
	}

	if err := drawCaption(canvas, caption, dateText); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding cover JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCoverFit scales src so it covers the whole cell (cropping the
// overflow) and draws it centered.
func drawCoverFit(dst *image.RGBA, cell image.Rectangle, src image.Image) {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return
	}

	cw, ch := cell.Dx(), cell.Dy()
	scaleX := float64(cw) / float64(sw)
	scaleY := float64(ch) / float64(sh)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	scaledW := int(float64(sw)*scale + 0.5)
	scaledH := int(float64(sh)*scale + 0.5)
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), src, sb, xdraw.Src, nil)

	// Centering offset inside the scaled image; draw.Draw crops to the cell.
	offset := image.Point{
		X: (scaledW - cw) / 2,
		Y: (scaledH - ch) / 2,
	}
	draw.Draw(dst, cell, scaled, offset, draw.Src)
}

// drawCaption paints the semi-opaque band across the bottom 100px with
// the caption on the first line and the date on the second.
func drawCaption(canvas *image.RGBA, caption, dateText string) error {
	band := image.Rect(0, coverHeight-captionPx, coverWidth, coverHeight)
	shade := color.RGBA{0, 0, 0, 0x99}
	draw.Draw(canvas, band, image.NewUniform(shade), image.Point{}, draw.Over)

	captionFace, err := loadFace(gobold.TTF, 24)
	if err != nil {
		return fmt.Errorf("loading caption font: %w", err)
	}
	dateFace, err := loadFace(goregular.TTF, 18)
	if err != nil {
		return fmt.Errorf("loading date font: %w", err)
	}

	if caption != "" {
		drawCentered(canvas, fitLine(caption, captionFace, coverWidth-40), captionFace, coverHeight-60)
	}
	if dateText != "" {
		drawCentered(canvas, fitLine(dateText, dateFace, coverWidth-40), dateFace, coverHeight-30)
	}
	return nil
}

// drawCentered renders a line horizontally centered at baseline y.
func drawCentered(dst *image.RGBA, s string, face font.Face, y int) {
	w := font.MeasureString(face, s).Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P((coverWidth-w)/2, y),
	}
	d.DrawString(s)
}

// fitLine truncates a string with an ellipsis so it fits maxWidth pixels.
func fitLine(s string, face font.Face, maxWidth int) string {
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return string(runes)
}

// loadFace parses an OpenType font at the given size in points.
func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
