package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"
)

// RemoteDetector calls a detection sidecar over HTTP: the frame goes out as
// JPEG, detections come back as JSON. Boxes use the detector's
// top/right/bottom/left convention.
type RemoteDetector struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewRemoteDetector(url string, log *slog.Logger) *RemoteDetector {
	return &RemoteDetector{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With("component", "detector"),
	}
}

type remoteDetection struct {
	Top       int       `json:"top"`
	Right     int       `json:"right"`
	Bottom    int       `json:"bottom"`
	Left      int       `json:"left"`
	Embedding []float64 `json:"embedding"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	payload, err := Encode(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("detector unreachable", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.Warn("detector rejected frame", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	detections := make([]Detection, 0, len(decoded.Detections))
	for _, rd := range decoded.Detections {
		detections = append(detections, Detection{
			Box:       image.Rect(rd.Left, rd.Top, rd.Right, rd.Bottom),
			Embedding: rd.Embedding,
		})
	}
	return detections, nil
}
