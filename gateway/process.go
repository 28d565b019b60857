package gateway

import (
	"context"
	"errors"
	"image/color"

	"strzcam.com/recognizer/identity"
	"strzcam.com/recognizer/vision"
)

// Annotation colors by outcome.
var (
	colorStrong   = color.RGBA{0, 255, 0, 255}   // confirmed match
	colorWeak     = color.RGBA{255, 255, 0, 255} // plausible, unconfirmed
	colorEnrolled = color.RGBA{255, 0, 0, 255}   // brand new entry
	colorPending  = color.RGBA{255, 165, 0, 255} // face with no usable identity
)

// cropPadding is how much context an enrollment crop keeps around the box.
const cropPadding = 20

// errUndecodable marks a payload that is not a parseable image. The frame
// is dropped and, unlike every other failure, no ack goes back.
var errUndecodable = errors.New("gateway: undecodable frame payload")

// processFrame turns one inbound payload into the annotated frame for the
// hub and the frame's resolved identity ("" when nobody resolved).
//
// Per-face failures never abort the frame: a dead detector means zero
// detections, a failed enrollment means that face stays anonymous.
func (s *Server) processFrame(ctx context.Context, payload []byte) ([]byte, string, error) {
	img, err := vision.Decode(payload)
	if err != nil {
		return nil, "", errUndecodable
	}

	detections, err := s.detector.Detect(ctx, img)
	if err != nil {
		s.log.Warn("detection degraded to zero faces", "error", err)
		detections = nil
	}

	var (
		annotations []vision.Annotation
		best        identity.Match
		haveBest    bool
	)
	bounds := img.Bounds()

	for _, det := range detections {
		boxColor := colorPending
		if det.Embedding != nil {
			crop := vision.Crop(img, vision.PadBox(det.Box, bounds, cropPadding))
			match, err := s.engine.Resolve(ctx, crop, det.Embedding)
			if err != nil {
				s.log.Warn("face resolution failed", "error", err)
			}
			switch {
			case match.Tier == identity.TierStrong:
				boxColor = colorStrong
			case match.Tier == identity.TierWeak:
				boxColor = colorWeak
			case match.Enrolled:
				boxColor = colorEnrolled
			}
			if match.Resolved() && (!haveBest || outranks(match, best)) {
				best = match
				haveBest = true
			}
		}
		annotations = append(annotations, vision.Annotation{Box: det.Box, Color: boxColor})
	}

	encoded, err := vision.Encode(vision.Annotate(img, annotations))
	if err != nil {
		return nil, "", err
	}

	if !haveBest {
		return encoded, "", nil
	}
	return encoded, best.PersonID, nil
}

// outranks orders resolved matches: a strong match beats a fresh
// enrollment; within a rank the lower distance wins.
func outranks(a, b identity.Match) bool {
	ra, rb := matchRank(a), matchRank(b)
	if ra != rb {
		return ra > rb
	}
	return a.Distance < b.Distance
}

func matchRank(m identity.Match) int {
	switch {
	case m.Tier == identity.TierStrong:
		return 2
	case m.Enrolled:
		return 1
	default:
		return 0
	}
}
