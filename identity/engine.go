package identity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"strzcam.com/recognizer/storage"
)

// Engine classifies face embeddings against the active owner's enrolled
// people and enrolls unmatched faces.
//
// One mutex serializes classification, enrollment and the index swap. The
// classify-then-enroll pair runs under a single hold of it, so two frames
// carrying the same new face cannot race into two people.
type Engine struct {
	store storage.Store
	crops *storage.CropStore
	log   *slog.Logger

	mu        sync.Mutex
	ownerID   string
	encodings [][]float64
	ids       []string
	people    map[string]storage.Person
}

func NewEngine(store storage.Store, crops *storage.CropStore, log *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		crops:  crops,
		log:    log.With("component", "engine"),
		people: make(map[string]storage.Person),
	}
}

// SetActiveOwner rebuilds the index for ownerID. An empty ownerID is the
// logged-out state: the index is cleared and every classification comes
// back TierNone. The new index is built off to the side and swapped in
// whole, so concurrent classifications see the old one or the new one,
// never a mix.
func (e *Engine) SetActiveOwner(ctx context.Context, ownerID string) error {
	var (
		encodings [][]float64
		ids       []string
		people    = make(map[string]storage.Person)
	)

	if ownerID != "" {
		stored, err := e.store.ListByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("load people for %s: %w", ownerID, err)
		}
		for _, p := range stored {
			if p.Encoding == nil {
				continue
			}
			encodings = append(encodings, p.Encoding)
			ids = append(ids, p.ID)
			people[p.ID] = p
		}
	}

	e.mu.Lock()
	e.ownerID = ownerID
	e.encodings = encodings
	e.ids = ids
	e.people = people
	e.mu.Unlock()

	e.log.Info("active owner changed", "owner", ownerID, "indexed", len(ids))
	return nil
}

// ActiveOwner returns the owner the index is currently built for.
func (e *Engine) ActiveOwner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ownerID
}

// Classify finds the nearest indexed encoding and maps its distance to a
// tier. Deterministic for a fixed index and embedding.
func (e *Engine) Classify(embedding []float64) Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifyLocked(embedding)
}

func (e *Engine) classifyLocked(embedding []float64) Match {
	best := Match{Tier: TierNone, Distance: 1.0}
	if len(e.encodings) == 0 {
		return best
	}

	bestIdx := -1
	for i, known := range e.encodings {
		if d := euclidean(known, embedding); bestIdx < 0 || d < best.Distance {
			best.Distance = d
			bestIdx = i
		}
	}
	switch {
	case best.Distance < strongThreshold:
		best.Tier = TierStrong
		best.PersonID = e.ids[bestIdx]
	case best.Distance < weakThreshold:
		best.Tier = TierWeak
		best.PersonID = e.ids[bestIdx]
	}
	return best
}

// Resolve classifies the embedding and, when nobody matches, enrolls the
// face as a new person. Both steps happen under one lock hold.
func (e *Engine) Resolve(ctx context.Context, crop image.Image, embedding []float64) (Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	match := e.classifyLocked(embedding)
	if match.Tier != TierNone {
		return match, nil
	}

	person, err := e.enrollLocked(ctx, crop, embedding)
	if err != nil {
		return match, err
	}
	match.PersonID = person.ID
	match.Enrolled = person.ID != UnsavedID
	return match, nil
}

// Enroll creates a new person for a face that matched nobody. Only valid
// after Classify returned TierNone; Resolve is the race-free way to do both.
func (e *Engine) Enroll(ctx context.Context, crop image.Image, embedding []float64) (storage.Person, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrollLocked(ctx, crop, embedding)
}

func (e *Engine) enrollLocked(ctx context.Context, crop image.Image, embedding []float64) (storage.Person, error) {
	if e.ownerID == "" {
		e.log.Warn("no active owner, face not enrolled")
		return storage.Person{ID: UnsavedID, Name: "Unsaved (Login Required)"}, nil
	}

	person := storage.Person{
		ID:       uuid.NewString(),
		OwnerID:  e.ownerID,
		Name:     "Unknown",
		Encoding: embedding,
	}

	path, err := e.crops.Save(e.ownerID, person.ID, crop)
	if err != nil {
		return storage.Person{}, fmt.Errorf("save face crop: %w", err)
	}
	person.ImagePath = path

	if err := e.store.Create(ctx, person); err != nil {
		// Keep the crop directory consistent with the store.
		_ = os.Remove(path)
		return storage.Person{}, fmt.Errorf("persist person: %w", err)
	}

	// Index update comes last so a failed write never leaves a phantom
	// entry behind.
	e.encodings = append(e.encodings, embedding)
	e.ids = append(e.ids, person.ID)
	e.people[person.ID] = person

	e.log.Info("enrolled new person", "person", person.ID, "owner", e.ownerID)
	return person, nil
}

// UpdateDetails applies display-field changes through the store and patches
// the cached person so the next frame reflects them. Returns false when the
// person does not exist. The encoding is never touched by this path.
func (e *Engine) UpdateDetails(ctx context.Context, personID string, fields storage.Fields) (bool, error) {
	updated, err := e.store.Update(ctx, personID, fields)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("update person %s: %w", personID, err)
	}

	e.mu.Lock()
	if _, ok := e.people[personID]; ok {
		e.people[personID] = updated
	}
	e.mu.Unlock()

	e.log.Info("updated person details", "person", personID)
	return true, nil
}

// Person returns the cached record for an indexed person.
func (e *Engine) Person(personID string) (storage.Person, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.people[personID]
	return p, ok
}
