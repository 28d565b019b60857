package vision

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	data, err := Encode(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 24 {
		t.Errorf("unexpected bounds: %v", decoded.Bounds())
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not jpeg")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestPadBoxClampsToBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	padded := PadBox(image.Rect(10, 10, 30, 30), bounds, 20)
	if padded != image.Rect(0, 0, 50, 50) {
		t.Errorf("unexpected padded box: %v", padded)
	}

	padded = PadBox(image.Rect(80, 80, 95, 95), bounds, 20)
	if padded.Max.X > 100 || padded.Max.Y > 100 {
		t.Errorf("padded box leaves the image: %v", padded)
	}
}

func TestAnnotateDrawsBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	green := color.RGBA{0, 255, 0, 255}
	out := Annotate(img, []Annotation{{Box: image.Rect(10, 10, 40, 40), Color: green}})

	if out.RGBAAt(10, 10) != green {
		t.Errorf("expected box corner to be green, got %v", out.RGBAAt(10, 10))
	}
	if out.RGBAAt(25, 25) == green {
		t.Error("box interior should not be filled")
	}
	// The original image is untouched.
	if img.RGBAAt(10, 10) == green {
		t.Error("annotation modified the source image")
	}
}

func TestRemoteDetector(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"top": 5, "right": 45, "bottom": 40, "left": 10, "embedding": []float64{0.1, 0.2}},
			},
		})
	}))
	defer ts.Close()

	detector := NewRemoteDetector(ts.URL, slog.Default())
	detections, err := detector.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}
	if detections[0].Box != image.Rect(10, 5, 45, 40) {
		t.Errorf("unexpected box: %v", detections[0].Box)
	}
}

func TestRemoteDetectorDown(t *testing.T) {
	detector := NewRemoteDetector("http://127.0.0.1:1/detect", slog.Default())
	_, err := detector.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
