// Package gesture turns raw motion samples and camera frame statistics into
// discrete gesture events: steps, shakes, tilt holds, and lens covers.
//
// Recognition is event-time driven: every decision compares timestamps
// carried by the samples themselves, never the wall clock, so a recorded
// signal replayed faster than real time produces identical events.
package gesture

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies a gesture category.
type Kind int

const (
	KindStep Kind = iota
	KindShake
	KindTiltHoldStart
	KindTiltHoldComplete
	KindCoverQuick
	KindCoverHold

	numKinds
)

var kindNames = [...]string{
	KindStep:             "step",
	KindShake:            "shake",
	KindTiltHoldStart:    "tilt_hold_start",
	KindTiltHoldComplete: "tilt_hold_complete",
	KindCoverQuick:       "cover_quick",
	KindCoverHold:        "cover_hold",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns all gesture kinds in drain order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Event is a single recognized gesture.
type Event struct {
	ID   uuid.UUID `json:"id"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	// Magnitude is the peak acceleration in g for motion gestures and the
	// black pixel ratio for cover gestures.
	Magnitude float64 `json:"magnitude"`

	// Duration is how long the pose was held, for tilt and cover gestures.
	Duration time.Duration `json:"duration,omitempty"`
}
