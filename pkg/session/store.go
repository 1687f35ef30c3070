package session

import (
	"context"
	"time"
)

// State is everything one user session carries between renders: the raw race
// results as uploaded, plus the values derived from them. It is written
// wholesale on every load and never partially mutated.
//
// RaceData is kept as raw bytes rather than a parsed frame: frames are
// transient and recomputed in full on every request.
type State struct {
	// Name is the uploaded filename or the configured file path.
	Name string `json:"name"`
	// RaceData is the delimited text as received.
	RaceData []byte `json:"raceData"`
	// Distances is the distinct set of distance values derived at load time.
	Distances []string `json:"distances"`
	// DistanceChosen is the last distance the user selected, if any.
	DistanceChosen string    `json:"distanceChosen,omitempty"`
	LoadedAt       time.Time `json:"loadedAt"`
}

// Store holds per-session state. Implementations must treat Put as a
// wholesale replacement of whatever the session held before.
type Store interface {
	Put(ctx context.Context, session string, st State) error
	Get(ctx context.Context, session string) (State, bool, error)
}
