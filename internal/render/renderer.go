package render

import (
	"context"
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/pet"
	"github.com/jaspreeeet/kaku/internal/timeutil"
)

// SnapshotSource yields point-in-time pet snapshots. In production this
// is the pet machine.
type SnapshotSource interface {
	Snapshot() pet.Snapshot
}

// FrameMeta describes the frame most recently drawn, for the dashboard.
type FrameMeta struct {
	Sequence     string `json:"sequence"`
	FrameIndex   int    `json:"frame_index"`
	ScreenType   string `json:"screen_type"`
	ShowHomeIcon bool   `json:"show_home_icon"`
	ShowFoodIcon bool   `json:"show_food_icon"`
	ShowPoopIcon bool   `json:"show_poop_icon"`
}

// Config wires a Renderer. Display and Source are required.
type Config struct {
	Display Display
	Source  SnapshotSource
	Clock   timeutil.Clock

	// FrameInterval is the render cadence.
	FrameInterval time.Duration

	// StartupHold forces the infant idle sequence for this long after
	// boot, matching the device's power-on behaviour.
	StartupHold time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 125 * time.Millisecond
	}
	if c.StartupHold <= 0 {
		c.StartupHold = 5 * time.Second
	}
	return c
}

const barW = 100

// Renderer drives the display at a fixed cadence. Each frame reads one
// snapshot, resolves it to a catalog sequence and composites overlays.
// Emotion arrives pre-resolved in the snapshot; the renderer never
// re-derives it from the underlying flags.
type Renderer struct {
	display     Display
	source      SnapshotSource
	clock       timeutil.Clock
	interval    time.Duration
	startupHold time.Duration

	mu       sync.Mutex
	bootedAt time.Time
	tick     uint64
	seqName  string
	seqStart uint64
	meta     FrameMeta
}

// NewRenderer builds a renderer from cfg, applying defaults for any zero
// fields.
func NewRenderer(cfg Config) *Renderer {
	cfg = cfg.withDefaults()
	return &Renderer{
		display:     cfg.Display,
		source:      cfg.Source,
		clock:       cfg.Clock,
		interval:    cfg.FrameInterval,
		startupHold: cfg.StartupHold,
	}
}

// Run renders frames until ctx is cancelled. Display faults are logged
// and the loop keeps going; the worst visible effect of any fault is a
// stale frame, never a blank panel.
func (r *Renderer) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.bootedAt.IsZero() {
		r.bootedAt = r.clock.Now()
	}
	r.mu.Unlock()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	monitoring.Logf("render: drawing every %v", r.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := r.RenderFrame(r.clock.Now()); err != nil {
				monitoring.Logf("render: frame failed: %v", err)
			}
		}
	}
}

// RenderFrame draws a single frame for the given instant.
func (r *Renderer) RenderFrame(now time.Time) error {
	snap := r.source.Snapshot()

	r.mu.Lock()
	if r.bootedAt.IsZero() {
		r.bootedAt = now
	}
	hold := now.Sub(r.bootedAt) < r.startupHold

	var seq Sequence
	var picked bool
	if hold {
		seq = Lookup(SequenceKey{Emotion: pet.EmotionIdle, Stage: pet.StageInfant, Menu: pet.MenuMain})
		picked = true
	} else if snap.Reaction != pet.ReactionNone {
		seq, picked = ReactionSequence(snap.Reaction, snap.Stage)
	}
	if !picked {
		seq = Lookup(SequenceKey{Emotion: snap.Emotion, Stage: snap.Stage, Menu: snap.Menu})
	}

	if seq.Name != r.seqName {
		r.seqName = seq.Name
		r.seqStart = r.tick
	}
	idx, art := seq.FrameAt(r.tick - r.seqStart)
	r.tick++

	meta := FrameMeta{
		Sequence:   seq.Name,
		FrameIndex: idx,
		ScreenType: pet.MenuMain.String(),
	}
	if !hold {
		meta.ScreenType = snap.Menu.String()
		meta.ShowHomeIcon = snap.Menu == pet.MenuMain
		meta.ShowFoodIcon = snap.IsHungry
		meta.ShowPoopIcon = snap.IsDirty
	}
	r.meta = meta
	r.mu.Unlock()

	w, h := r.display.Size()
	screen := NewBitmap(w, h)
	screen.Blit((w-PetW)/2, (h-PetH)/2, art)
	if meta.ShowHomeIcon {
		screen.Blit(1, 1, iconHome)
	}
	if meta.ShowFoodIcon {
		screen.Blit(w-18, 1, iconFood)
	}
	if meta.ShowPoopIcon {
		screen.Blit(w-9, 1, iconPoop)
	}
	if !hold && snap.Menu == pet.MenuHealth {
		drawBar(screen, (w-barW)/2, h-13, barW, 5, float64(snap.HealthScore)/float64(pet.HealthMax))
		if snap.FeedCapacity > 0 {
			full := snap.FeedCapacity - snap.HungerLevel
			drawBar(screen, (w-barW)/2, h-6, barW, 5, float64(full)/float64(snap.FeedCapacity))
		}
	}

	if err := r.display.DrawBitmap(0, 0, screen); err != nil {
		return err
	}
	return r.display.Present()
}

// Meta returns metadata for the last rendered frame.
func (r *Renderer) Meta() FrameMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}
