// Package signal runs the sampling loop that turns raw sensor traffic into
// pet interactions. It subscribes to the sensor bus for motion lines, polls
// the camera listener for frame statistics, feeds both into the gesture
// recognizer at a fixed cadence and applies whatever gestures come out.
//
// Sensor faults never stop the loop. A motion feed that goes quiet or turns
// to garbage degrades to a synthetic at-rest reading so that in-flight pose
// gestures release instead of sticking, and a stale camera simply means no
// frame is offered that cycle. Both conditions are tracked and exposed via
// Status for the health endpoint.
package signal

import (
	"context"
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/gesture"
	"github.com/jaspreeeet/kaku/internal/imu"
	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/timeutil"
	"github.com/jaspreeeet/kaku/internal/vision"
)

// Bus is the slice of the sensor bus the sampler consumes.
type Bus interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// FrameSource serves the most recent camera frame statistics.
type FrameSource interface {
	LatestStats() (vision.FrameStats, bool)
}

// Recognizer consumes normalized readings and accumulates gesture events.
type Recognizer interface {
	OfferMotion(imu.MotionSample)
	OfferFrame(vision.FrameStats)
	Drain() []gesture.Event
}

// Applier receives recognized gestures. In production this is the pet
// machine.
type Applier interface {
	ApplyGesture(gesture.Event)
}

// EventSink optionally records applied gestures for later analysis.
type EventSink interface {
	RecordGestureEvent(ctx context.Context, ev gesture.Event) error
}

// Config wires a Sampler. Bus, Recognizer and Applier are required; Frames
// and Events may be nil when the camera or database is disabled.
type Config struct {
	Bus        Bus
	Frames     FrameSource
	Recognizer Recognizer
	Applier    Applier
	Events     EventSink
	Clock      timeutil.Clock

	// Interval is the sampling cadence.
	Interval time.Duration

	// MotionStaleAfter degrades the motion feed when no valid line has
	// arrived for this long.
	MotionStaleAfter time.Duration

	// CameraStaleAfter treats older frame statistics as a camera fault.
	CameraStaleAfter time.Duration

	// FailureThreshold degrades the motion feed after this many consecutive
	// unparseable motion lines, even if lines keep arriving.
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	if c.Interval <= 0 {
		c.Interval = 50 * time.Millisecond
	}
	if c.MotionStaleAfter <= 0 {
		c.MotionStaleAfter = 2 * time.Second
	}
	if c.CameraStaleAfter <= 0 {
		c.CameraStaleAfter = 2 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 10
	}
	return c
}

// Status is a point-in-time health report for the sampling loop.
type Status struct {
	DegradedMotion bool      `json:"degraded_motion"`
	DegradedCamera bool      `json:"degraded_camera"`
	LastMotionAt   time.Time `json:"last_motion_at"`
	LastFrameAt    time.Time `json:"last_frame_at"`
	MotionLines    uint64    `json:"motion_lines"`
	ParseFailures  uint64    `json:"parse_failures"`
	EventsApplied  uint64    `json:"events_applied"`
}

// Sampler holds the latest normalized readings and drives the recognizer.
type Sampler struct {
	bus     Bus
	frames  FrameSource
	rec     Recognizer
	applier Applier
	events  EventSink
	clock   timeutil.Clock

	interval         time.Duration
	motionStaleAfter time.Duration
	cameraStaleAfter time.Duration
	failureThreshold int

	mu             sync.Mutex
	latest         imu.MotionSample
	haveMotion     bool
	lastMotionAt   time.Time
	lastFrameAt    time.Time
	consecFailures int
	degradedMotion bool
	degradedCamera bool
	motionLines    uint64
	parseFailures  uint64
	eventsApplied  uint64
}

// NewSampler builds a sampler from cfg, applying defaults for any zero
// fields.
func NewSampler(cfg Config) *Sampler {
	cfg = cfg.withDefaults()
	return &Sampler{
		bus:              cfg.Bus,
		frames:           cfg.Frames,
		rec:              cfg.Recognizer,
		applier:          cfg.Applier,
		events:           cfg.Events,
		clock:            cfg.Clock,
		interval:         cfg.Interval,
		motionStaleAfter: cfg.MotionStaleAfter,
		cameraStaleAfter: cfg.CameraStaleAfter,
		failureThreshold: cfg.FailureThreshold,
	}
}

// Run subscribes to the sensor bus and samples until ctx is cancelled or the
// bus shuts down.
func (s *Sampler) Run(ctx context.Context) error {
	id, lines := s.bus.Subscribe()
	defer s.bus.Unsubscribe(id)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	monitoring.Logf("signal: sampling every %v", s.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			// a closed channel means the bus itself shut down
			if !ok {
				return nil
			}
			s.IngestLine(line, s.clock.Now())

		case <-ticker.C():
			s.RunCycle(ctx, s.clock.Now())
		}
	}
}

// IngestLine handles one raw line from the sensor bus. Non-motion lines are
// firmware chatter and are skipped without affecting health tracking.
func (s *Sampler) IngestLine(line string, at time.Time) {
	if !imu.IsMotionLine(line) {
		return
	}

	sample, err := imu.ParseLine(line, at)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.parseFailures++
		s.consecFailures++
		if s.consecFailures == s.failureThreshold {
			s.setMotionDegradedLocked(true, "unparseable motion lines")
		}
		return
	}

	s.latest = sample
	s.haveMotion = true
	s.lastMotionAt = at
	s.motionLines++
	s.consecFailures = 0
	s.setMotionDegradedLocked(false, "")
}

// RunCycle performs one sampling pass: offer the freshest motion reading and
// camera frame to the recognizer, then apply any gestures it produced.
func (s *Sampler) RunCycle(ctx context.Context, now time.Time) {
	s.offerMotion(now)
	s.offerFrame(now)
	s.dispatch(ctx)
}

func (s *Sampler) offerMotion(now time.Time) {
	s.mu.Lock()
	sample := s.latest
	fresh := s.haveMotion &&
		now.Sub(s.lastMotionAt) <= s.motionStaleAfter &&
		s.consecFailures < s.failureThreshold
	if !fresh {
		s.setMotionDegradedLocked(true, "no valid motion data")
		// Synthesize an at-rest reading so pose gestures held when the
		// feed dropped release instead of completing on reconnect.
		sample = imu.MotionSample{ReceivedAt: now}
	}
	s.mu.Unlock()

	s.rec.OfferMotion(sample)
}

func (s *Sampler) offerFrame(now time.Time) {
	if s.frames == nil {
		return
	}

	stats, ok := s.frames.LatestStats()
	stale := !ok || now.Sub(stats.CapturedAt) > s.cameraStaleAfter

	s.mu.Lock()
	if stale {
		if !s.degradedCamera {
			s.degradedCamera = true
			monitoring.Logf("signal: camera degraded, no fresh frames")
		}
		s.mu.Unlock()
		return
	}
	if s.degradedCamera {
		s.degradedCamera = false
		monitoring.Logf("signal: camera recovered")
	}
	if stats.CapturedAt.Equal(s.lastFrameAt) {
		// same frame as last cycle, the recognizer already saw it
		s.mu.Unlock()
		return
	}
	s.lastFrameAt = stats.CapturedAt
	s.mu.Unlock()

	s.rec.OfferFrame(stats)
}

func (s *Sampler) dispatch(ctx context.Context) {
	events := s.rec.Drain()
	if len(events) == 0 {
		return
	}

	for _, ev := range events {
		s.applier.ApplyGesture(ev)
		if s.events != nil {
			if err := s.events.RecordGestureEvent(ctx, ev); err != nil {
				monitoring.Logf("signal: failed to record %s gesture: %v", ev.Kind, err)
			}
		}
	}

	s.mu.Lock()
	s.eventsApplied += uint64(len(events))
	s.mu.Unlock()
}

// setMotionDegradedLocked flips the motion health flag, logging transitions.
// Callers must hold s.mu.
func (s *Sampler) setMotionDegradedLocked(degraded bool, reason string) {
	if degraded == s.degradedMotion {
		return
	}
	s.degradedMotion = degraded
	if degraded {
		monitoring.Logf("signal: motion feed degraded: %s", reason)
	} else {
		monitoring.Logf("signal: motion feed recovered")
	}
}

// Status reports sampling loop health for the health endpoint.
func (s *Sampler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		DegradedMotion: s.degradedMotion,
		DegradedCamera: s.degradedCamera,
		LastMotionAt:   s.lastMotionAt,
		LastFrameAt:    s.lastFrameAt,
		MotionLines:    s.motionLines,
		ParseFailures:  s.parseFailures,
		EventsApplied:  s.eventsApplied,
	}
}
