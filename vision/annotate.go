package vision

import (
	"image"
	"image/color"
	"image/draw"
)

const boxThickness = 2

// Annotation is one rectangle to draw on an outgoing frame.
type Annotation struct {
	Box   image.Rectangle
	Color color.RGBA
}

// Annotate copies img and draws each annotation box onto the copy.
func Annotate(img image.Image, annotations []Annotation) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, a := range annotations {
		drawRect(out, a.Box.Intersect(bounds), a.Color)
	}
	return out
}

func drawRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	if rect.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, rect.Min.Y+t, c)
			img.SetRGBA(x, rect.Max.Y-1-t, c)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			img.SetRGBA(rect.Min.X+t, y, c)
			img.SetRGBA(rect.Max.X-1-t, y, c)
		}
	}
}
