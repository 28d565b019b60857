// Package identity decides who a detected face is. It keeps an in-memory
// index of known face encodings for the active owner, classifies incoming
// embeddings against it and enrolls faces that match nobody.
package identity

import "math"

// Tier is the classification outcome for one face embedding.
type Tier int

const (
	// TierNone means no indexed face is close enough; the face is new.
	TierNone Tier = iota
	// TierWeak is a plausible but unconfirmed match, shown but never
	// treated as the frame's resolved identity and never written back.
	TierWeak
	// TierStrong is a confident match.
	TierStrong
)

func (t Tier) String() string {
	switch t {
	case TierStrong:
		return "strong"
	case TierWeak:
		return "weak"
	default:
		return "none"
	}
}

// Distance thresholds, tuned against face_recognition's 128-d encodings.
// Below strongThreshold we trust the match; between the two we only hint at
// it, which keeps a briefly turned head from enrolling as a second person.
// Fixed by design, not configuration.
const (
	strongThreshold = 0.55
	weakThreshold   = 0.75
)

// UnsavedID is the sentinel identity returned by enrollment when no owner
// is active. Nothing is written for it.
const UnsavedID = "unsaved"

// Match is the result of classifying (and possibly enrolling) one face.
type Match struct {
	Tier     Tier
	PersonID string
	Distance float64
	// Enrolled is true when a new person was durably created for this face.
	Enrolled bool
}

// Resolved reports whether this match may serve as a frame's identity:
// a strong match or a saved enrollment, never a weak hint or the sentinel.
func (m Match) Resolved() bool {
	return m.Tier == TierStrong || m.Enrolled
}

func euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
