package statesync

import (
	"context"
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/pet"
	"github.com/jaspreeeet/kaku/internal/timeutil"
	"github.com/jaspreeeet/kaku/internal/vision"
)

// Machine is the slice of the pet machine the adapter drives.
type Machine interface {
	Snapshot() pet.Snapshot
	Reconcile(remote pet.CareStamps) int
	PendingFeedAttempt() bool
	ResolveFeedAttempt(accept bool) error
}

// FrameSource serves the most recent full camera frame for the
// classifier path.
type FrameSource interface {
	LatestFrame() (vision.Frame, vision.FrameStats, bool)
}

// degradedAfter is how many consecutive sync failures mark the link
// degraded in Status.
const degradedAfter = 3

// Config wires an Adapter. Machine is required; Backend, Classifier and
// Frames are each optional. Without a Backend the adapter only resolves
// feed attempts; without a Classifier feed attempts are accepted on the
// gesture alone.
type Config struct {
	Backend    Backend
	Machine    Machine
	Classifier Classifier
	Frames     FrameSource
	Clock      timeutil.Clock

	// SyncInterval is the push/pull cadence against the backend.
	SyncInterval time.Duration

	// ResolveInterval is how often pending feed attempts are checked.
	ResolveInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 15 * time.Second
	}
	if c.ResolveInterval <= 0 {
		c.ResolveInterval = time.Second
	}
	return c
}

// Status is a point-in-time health report for the sync link.
type Status struct {
	Degraded      bool      `json:"degraded"`
	LastSyncAt    time.Time `json:"last_sync_at"`
	LastError     string    `json:"last_error,omitempty"`
	ConsecFails   int       `json:"consecutive_failures"`
	Pushes        uint64    `json:"pushes"`
	Pulls         uint64    `json:"pulls"`
	CareApplied   uint64    `json:"care_applied"`
	FeedsResolved uint64    `json:"feeds_resolved"`
}

// Adapter runs the sync and feed-resolution loops.
type Adapter struct {
	backend    Backend
	machine    Machine
	classifier Classifier
	frames     FrameSource
	clock      timeutil.Clock

	syncInterval    time.Duration
	resolveInterval time.Duration

	mu            sync.Mutex
	lastSyncAt    time.Time
	lastError     string
	consecFails   int
	pushes        uint64
	pulls         uint64
	careApplied   uint64
	feedsResolved uint64
}

// NewAdapter builds an adapter from cfg, applying defaults for any zero
// fields.
func NewAdapter(cfg Config) *Adapter {
	cfg = cfg.withDefaults()
	return &Adapter{
		backend:         cfg.Backend,
		machine:         cfg.Machine,
		classifier:      cfg.Classifier,
		frames:          cfg.Frames,
		clock:           cfg.Clock,
		syncInterval:    cfg.SyncInterval,
		resolveInterval: cfg.ResolveInterval,
	}
}

// Run drives both cadences until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	syncTicker := a.clock.NewTicker(a.syncInterval)
	defer syncTicker.Stop()
	resolveTicker := a.clock.NewTicker(a.resolveInterval)
	defer resolveTicker.Stop()

	if a.backend != nil {
		monitoring.Logf("statesync: syncing every %v", a.syncInterval)
	} else {
		monitoring.Logf("statesync: no backend configured, resolving feeds locally")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resolveTicker.C():
			a.ResolvePending(ctx)
		case <-syncTicker.C():
			a.SyncOnce(ctx)
		}
	}
}

// ResolvePending settles a gesture-armed feed attempt, if one is waiting.
// With a classifier configured, the latest camera frame is submitted and
// the verdict decides; otherwise the gesture alone feeds. Transient
// classifier faults leave the attempt pending for the next pass, bounded
// by the machine's own attempt deadline.
func (a *Adapter) ResolvePending(ctx context.Context) {
	if !a.machine.PendingFeedAttempt() {
		return
	}

	accept := true
	if a.classifier != nil && a.frames != nil {
		frame, _, ok := a.frames.LatestFrame()
		if !ok {
			return
		}
		isFood, err := a.classifier.ClassifyFrame(ctx, frame.Pixels)
		if err != nil {
			monitoring.Logf("statesync: classify failed, retrying: %v", err)
			return
		}
		accept = isFood
	}

	if err := a.machine.ResolveFeedAttempt(accept); err != nil {
		// the attempt expired or was settled elsewhere in the meantime
		return
	}
	a.mu.Lock()
	a.feedsResolved++
	a.mu.Unlock()
	monitoring.Logf("statesync: feed attempt resolved, accepted=%v", accept)
}

// SyncOnce performs one push/pull round against the backend. The
// snapshot read and the reconcile each take the machine lock briefly;
// the network round-trips happen strictly between them.
func (a *Adapter) SyncOnce(ctx context.Context) {
	if a.backend == nil {
		return
	}

	snap := a.machine.Snapshot()

	if err := a.backend.PushStateSnapshot(ctx, snap); err != nil {
		a.recordFailure("push", err)
		return
	}
	a.mu.Lock()
	a.pushes++
	a.mu.Unlock()

	remote, err := a.backend.PullAuthoritativeState(ctx)
	if err != nil {
		a.recordFailure("pull", err)
		return
	}

	applied := a.machine.Reconcile(remote.Care)

	a.mu.Lock()
	a.pulls++
	a.careApplied += uint64(applied)
	a.lastSyncAt = a.clock.Now()
	a.lastError = ""
	recovered := a.consecFails >= degradedAfter
	a.consecFails = 0
	a.mu.Unlock()

	if applied > 0 {
		monitoring.Logf("statesync: applied %d remote care actions", applied)
	}
	if recovered {
		monitoring.Logf("statesync: backend link recovered")
	}
}

func (a *Adapter) recordFailure(op string, err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	a.consecFails++
	fails := a.consecFails
	a.mu.Unlock()

	if fails == degradedAfter {
		monitoring.Logf("statesync: backend link degraded after %d failures: %v", fails, err)
	} else {
		monitoring.Logf("statesync: %s failed: %v", op, err)
	}
}

// Status reports sync link health for the health endpoint.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Degraded:      a.consecFails >= degradedAfter,
		LastSyncAt:    a.lastSyncAt,
		LastError:     a.lastError,
		ConsecFails:   a.consecFails,
		Pushes:        a.pushes,
		Pulls:         a.pulls,
		CareApplied:   a.careApplied,
		FeedsResolved: a.feedsResolved,
	}
}
