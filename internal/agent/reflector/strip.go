package reflector

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	_ "image/jpeg"
)

const (
	maxStripCells   = 6
	headerBarHeight = 60
)

var headerBarColor = color.RGBA{R: 0x2c, G: 0x3e, B: 0x50, A: 0xff}

// composeStrip lays the screenshots out as one horizontal row, each frame
// halved in size under a labelled header bar, and returns the strip as PNG.
// Returns nil when no screenshot decodes.
func composeStrip(screenshots [][]byte) ([]byte, error) {
	var frames []image.Image
	for _, data := range screenshots {
		if len(data) == 0 {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		frames = append(frames, img)
		if len(frames) == maxStripCells {
			break
		}
	}
	if len(frames) == 0 {
		return nil, nil
	}

	first := frames[0].Bounds()
	cellWidth := first.Dx() / 2
	cellHeight := first.Dy() / 2
	if cellWidth < 1 || cellHeight < 1 {
		return nil, fmt.Errorf("screenshot too small: %dx%d", first.Dx(), first.Dy())
	}

	strip := image.NewRGBA(image.Rect(0, 0, len(frames)*cellWidth, cellHeight+headerBarHeight))
	xdraw.Draw(strip, strip.Bounds(), image.White, image.Point{}, xdraw.Src)

	for i, frame := range frames {
		x := i * cellWidth

		header := image.Rect(x, 0, x+cellWidth, headerBarHeight)
		xdraw.Draw(strip, header, image.NewUniform(headerBarColor), image.Point{}, xdraw.Src)
		drawCenteredLabel(strip, header, fmt.Sprintf("Step %d", i+1))

		cell := image.Rect(x, headerBarHeight, x+cellWidth, headerBarHeight+cellHeight)
		xdraw.ApproxBiLinear.Scale(strip, cell, frame, frame.Bounds(), xdraw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, strip); err != nil {
		return nil, fmt.Errorf("encode screenshot strip: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCenteredLabel(dst *image.RGBA, bar image.Rectangle, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot: fixed.P(
			bar.Min.X+(bar.Dx()-width)/2,
			bar.Min.Y+(bar.Dy()+face.Ascent)/2,
		),
	}
	drawer.DrawString(text)
}
