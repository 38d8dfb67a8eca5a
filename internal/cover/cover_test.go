package cover

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
)

// makePNG encodes a solid-color image for use as a mosaic tile.
func makePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeCover(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("cover is not a valid JPEG: %v", err)
	}
	return img
}

func TestCompose_FiveImages(t *testing.T) {
	red := color.NRGBA{200, 30, 30, 255}
	tiles := [][]byte{
		makePNG(t, 300, 200, red),
		makePNG(t, 120, 400, color.NRGBA{30, 200, 30, 255}),
		makePNG(t, 50, 50, color.NRGBA{30, 30, 200, 255}),
		makePNG(t, 640, 480, color.NRGBA{200, 200, 30, 255}),
		makePNG(t, 10, 10, color.NRGBA{200, 30, 200, 255}),
	}

	data, err := Compose(tiles, "lemonde.fr · liberation.fr", "15/03/2026", io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	img := decodeCover(t, data)
	b := img.Bounds()
	if b.Dx() != 600 || b.Dy() != 800 {
		t.Errorf("cover dimensions = %dx%d, want 600x800", b.Dx(), b.Dy())
	}

	// Five tiles means three rows; the first cell should read roughly red.
	r, g, _, _ := img.At(50, 50).RGBA()
	if r>>8 < 150 || g>>8 > 100 {
		t.Errorf("first cell pixel = %v, want red-ish", img.At(50, 50))
	}
}

func TestCompose_NoImages(t *testing.T) {
	_, err := Compose(nil, "titre", "date", io.Discard)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("err = %v, want ErrNoImages", err)
	}
}

func TestCompose_AllUndecodable(t *testing.T) {
	var log bytes.Buffer
	tiles := [][]byte{[]byte("not an image"), []byte{0xff, 0x00}}
	_, err := Compose(tiles, "titre", "date", &log)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("err = %v, want ErrNoImages", err)
	}
	if log.Len() == 0 {
		t.Error("expected skip warnings in the log")
	}
}

func TestCompose_SkipsBadTilesAmongGood(t *testing.T) {
	tiles := [][]byte{
		[]byte("garbage"),
		makePNG(t, 100, 100, color.NRGBA{10, 10, 10, 255}),
	}
	data, err := Compose(tiles, "", "", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	decodeCover(t, data)
}

func TestCompose_CapsAtEightTiles(t *testing.T) {
	var tiles [][]byte
	for i := 0; i < 12; i++ {
		tiles = append(tiles, makePNG(t, 40, 40, color.NRGBA{uint8(i * 20), 100, 100, 255}))
	}
	data, err := Compose(tiles, "beaucoup d'articles", "01/01/2026", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	img := decodeCover(t, data)
	if img.Bounds().Dx() != 600 || img.Bounds().Dy() != 800 {
		t.Errorf("dimensions = %v", img.Bounds())
	}
}

func TestFitLine_TruncatesWithEllipsis(t *testing.T) {
	face, err := loadFace(gobold.TTF, 24)
	if err != nil {
		t.Fatal(err)
	}

	long := "un titre extrêmement long qui ne tiendra jamais sur une seule ligne de couverture"
	got := fitLine(long, face, 200)
	if got == long {
		t.Error("expected truncation")
	}
	if len(got) == 0 {
		t.Error("result empty")
	}

	short := "court"
	if fitLine(short, face, 560) != short {
		t.Error("short line should pass through unchanged")
	}
}
