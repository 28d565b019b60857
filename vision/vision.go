// Package vision is the boundary to the face detection and embedding
// capability. The capability itself runs out of process; this package only
// consumes it and carries the image plumbing around it.
package vision

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable means the detection capability cannot be reached. Callers
// degrade to zero detections for the frame.
var ErrUnavailable = errors.New("vision: detector unavailable")

// Detection is one detected face: where it is and its embedding vector.
// Embedding is nil when the detector found a face but could not encode it.
type Detection struct {
	Box       image.Rectangle
	Embedding []float64
}

type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// PadBox grows box by pad on every side, clamped to bounds. Enrollment
// crops carry a little context around the face.
func PadBox(box, bounds image.Rectangle, pad int) image.Rectangle {
	return image.Rect(
		box.Min.X-pad,
		box.Min.Y-pad,
		box.Max.X+pad,
		box.Max.Y+pad,
	).Intersect(bounds)
}

// Crop copies the region rect out of img.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
		}
	}
	return out
}
