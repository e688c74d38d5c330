package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaspreeeet/kaku/internal/imu"
	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/vision"
)

// Config holds the recognizer thresholds. Zero values are replaced by the
// defaults from DefaultConfig.
type Config struct {
	// Step detection: an exponential moving average of the acceleration
	// magnitude must cross StepThresholdG from below, with at least
	// StepRefractory between steps.
	StepThresholdG float64
	StepAlpha      float64
	StepRefractory time.Duration

	// Shake detection: ShakeReversals sign reversals of the lateral axis,
	// each with magnitude at least ShakeLateralMinG, inside ShakeWindow.
	ShakeLateralMinG float64
	ShakeReversals   int
	ShakeWindow      time.Duration

	// Tilt detection: lateral gravity component above TiltThresholdG held
	// continuously for TiltHoldDuration.
	TiltThresholdG   float64
	TiltHoldDuration time.Duration

	// Cover detection: a streak of black frames at least CoverQuickMin long
	// ending before CoverHoldDuration is a quick cover; reaching
	// CoverHoldDuration while still covered is a hold. Each has its own
	// cooldown so a single touch cannot retrigger.
	CoverQuickMin      time.Duration
	CoverHoldDuration  time.Duration
	CoverQuickCooldown time.Duration
	CoverHoldCooldown  time.Duration
}

// DefaultConfig returns the thresholds tuned against the reference board.
func DefaultConfig() Config {
	return Config{
		StepThresholdG: 1.35,
		StepAlpha:      0.3,
		StepRefractory: 250 * time.Millisecond,

		ShakeLateralMinG: 0.6,
		ShakeReversals:   5,
		ShakeWindow:      1500 * time.Millisecond,

		TiltThresholdG:   0.7,
		TiltHoldDuration: 3 * time.Second,

		CoverQuickMin:      200 * time.Millisecond,
		CoverHoldDuration:  2 * time.Second,
		CoverQuickCooldown: time.Second,
		CoverHoldCooldown:  3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StepThresholdG <= 0 {
		c.StepThresholdG = def.StepThresholdG
	}
	if c.StepAlpha <= 0 || c.StepAlpha > 1 {
		c.StepAlpha = def.StepAlpha
	}
	if c.StepRefractory <= 0 {
		c.StepRefractory = def.StepRefractory
	}
	if c.ShakeLateralMinG <= 0 {
		c.ShakeLateralMinG = def.ShakeLateralMinG
	}
	if c.ShakeReversals <= 0 {
		c.ShakeReversals = def.ShakeReversals
	}
	if c.ShakeWindow <= 0 {
		c.ShakeWindow = def.ShakeWindow
	}
	if c.TiltThresholdG <= 0 {
		c.TiltThresholdG = def.TiltThresholdG
	}
	if c.TiltHoldDuration <= 0 {
		c.TiltHoldDuration = def.TiltHoldDuration
	}
	if c.CoverQuickMin <= 0 {
		c.CoverQuickMin = def.CoverQuickMin
	}
	if c.CoverHoldDuration <= 0 {
		c.CoverHoldDuration = def.CoverHoldDuration
	}
	if c.CoverQuickCooldown <= 0 {
		c.CoverQuickCooldown = def.CoverQuickCooldown
	}
	if c.CoverHoldCooldown <= 0 {
		c.CoverHoldCooldown = def.CoverHoldCooldown
	}
	return c
}

// Recognizer consumes samples and accumulates at most one pending event per
// gesture kind. A new event of a kind that already has a pending slot
// overwrites it; nothing queues. Drain hands the pending events to the pet
// state machine and clears the slots.
type Recognizer struct {
	cfg Config

	mu sync.Mutex

	// step state
	ema        float64
	emaPrimed  bool
	emaAbove   bool
	lastStepAt time.Time

	// shake state
	lastLateralSign int
	reversals       int
	windowStart     time.Time
	shakePeakG      float64

	// tilt state
	tiltHolding bool
	tiltLatched bool
	tiltStart   time.Time

	// cover state
	covering         bool
	coverStart       time.Time
	coverPeakRatio   float64
	coverHoldFired   bool
	lastCoverQuickAt time.Time
	lastCoverHoldAt  time.Time

	pending [numKinds]*Event
}

// NewRecognizer creates a Recognizer with the given thresholds.
func NewRecognizer(cfg Config) *Recognizer {
	return &Recognizer{cfg: cfg.withDefaults()}
}

// OfferMotion feeds one accelerometer sample through the step, shake, and
// tilt detectors. Sample timestamps drive all window arithmetic.
func (r *Recognizer) OfferMotion(s imu.MotionSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := s.ReceivedAt
	r.detectStep(s, now)
	r.detectShake(s, now)
	r.detectTilt(s, now)
}

// OfferFrame feeds one camera frame summary through the cover detector.
func (r *Recognizer) OfferFrame(fs vision.FrameStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := fs.CapturedAt
	if fs.IsBlack {
		if !r.covering {
			r.covering = true
			r.coverStart = now
			r.coverPeakRatio = fs.BlackRatio
			r.coverHoldFired = false
			return
		}
		if fs.BlackRatio > r.coverPeakRatio {
			r.coverPeakRatio = fs.BlackRatio
		}
		held := now.Sub(r.coverStart)
		if !r.coverHoldFired && held >= r.cfg.CoverHoldDuration {
			if r.lastCoverHoldAt.IsZero() || now.Sub(r.lastCoverHoldAt) >= r.cfg.CoverHoldCooldown {
				r.setPending(Event{
					Kind:      KindCoverHold,
					At:        now,
					Magnitude: r.coverPeakRatio,
					Duration:  held,
				})
				r.lastCoverHoldAt = now
			}
			// One streak produces at most one cover gesture.
			r.coverHoldFired = true
		}
		return
	}

	if !r.covering {
		return
	}
	r.covering = false
	if r.coverHoldFired {
		return
	}
	held := now.Sub(r.coverStart)
	if held < r.cfg.CoverQuickMin {
		return // too brief, likely a shadow
	}
	if !r.lastCoverQuickAt.IsZero() && now.Sub(r.lastCoverQuickAt) < r.cfg.CoverQuickCooldown {
		return
	}
	r.setPending(Event{
		Kind:      KindCoverQuick,
		At:        now,
		Magnitude: r.coverPeakRatio,
		Duration:  held,
	})
	r.lastCoverQuickAt = now
}

// Drain returns the pending events in kind order and clears all slots.
func (r *Recognizer) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for i := range r.pending {
		if r.pending[i] != nil {
			out = append(out, *r.pending[i])
			r.pending[i] = nil
		}
	}
	return out
}

// Pending returns the pending event of the given kind without draining it.
func (r *Recognizer) Pending(k Kind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k < 0 || k >= numKinds || r.pending[k] == nil {
		return Event{}, false
	}
	return *r.pending[k], true
}

func (r *Recognizer) setPending(ev Event) {
	ev.ID = uuid.New()
	if r.pending[ev.Kind] != nil {
		monitoring.Logf("gesture: overwriting pending %s event from %s", ev.Kind, r.pending[ev.Kind].At.Format(time.RFC3339Nano))
	}
	r.pending[ev.Kind] = &ev
}

func (r *Recognizer) detectStep(s imu.MotionSample, now time.Time) {
	m := s.Magnitude()
	if !r.emaPrimed {
		r.ema = m
		r.emaPrimed = true
		r.emaAbove = m >= r.cfg.StepThresholdG
		return
	}
	r.ema = r.cfg.StepAlpha*m + (1-r.cfg.StepAlpha)*r.ema

	above := r.ema >= r.cfg.StepThresholdG
	crossed := above && !r.emaAbove
	r.emaAbove = above
	if !crossed {
		return
	}
	if !r.lastStepAt.IsZero() && now.Sub(r.lastStepAt) < r.cfg.StepRefractory {
		return
	}
	r.lastStepAt = now
	r.setPending(Event{
		Kind:      KindStep,
		At:        now,
		Magnitude: r.ema,
	})
}

func (r *Recognizer) detectShake(s imu.MotionSample, now time.Time) {
	lateral := s.AxG
	if math.Abs(lateral) < r.cfg.ShakeLateralMinG {
		return
	}
	sign := 1
	if lateral < 0 {
		sign = -1
	}
	if r.lastLateralSign == 0 {
		r.lastLateralSign = sign
		return
	}
	if sign == r.lastLateralSign {
		if math.Abs(lateral) > r.shakePeakG {
			r.shakePeakG = math.Abs(lateral)
		}
		return
	}
	r.lastLateralSign = sign

	// A reversal outside the window starts a fresh count of one rather than
	// extending the stale burst.
	if r.reversals == 0 || now.Sub(r.windowStart) > r.cfg.ShakeWindow {
		r.reversals = 1
		r.windowStart = now
		r.shakePeakG = math.Abs(lateral)
		return
	}

	r.reversals++
	if math.Abs(lateral) > r.shakePeakG {
		r.shakePeakG = math.Abs(lateral)
	}
	if r.reversals < r.cfg.ShakeReversals {
		return
	}

	r.setPending(Event{
		Kind:      KindShake,
		At:        now,
		Magnitude: r.shakePeakG,
		Duration:  now.Sub(r.windowStart),
	})
	r.reversals = 0
	r.windowStart = time.Time{}
	r.shakePeakG = 0
}

func (r *Recognizer) detectTilt(s imu.MotionSample, now time.Time) {
	tilted := math.Abs(s.AxG) >= r.cfg.TiltThresholdG

	if !tilted {
		// Release rearms the detector; an abandoned hold emits nothing more.
		r.tiltHolding = false
		r.tiltLatched = false
		return
	}

	if r.tiltLatched {
		return // completed hold; require release before a new one
	}

	if !r.tiltHolding {
		r.tiltHolding = true
		r.tiltStart = now
		r.setPending(Event{
			Kind:      KindTiltHoldStart,
			At:        now,
			Magnitude: math.Abs(s.AxG),
		})
		return
	}

	held := now.Sub(r.tiltStart)
	if held >= r.cfg.TiltHoldDuration {
		r.setPending(Event{
			Kind:      KindTiltHoldComplete,
			At:        now,
			Magnitude: math.Abs(s.AxG),
			Duration:  held,
		})
		r.tiltHolding = false
		r.tiltLatched = true
	}
}
