package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaspreeeet/kaku/internal/pet"
	"github.com/jaspreeeet/kaku/internal/timeutil"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu   sync.Mutex
	snap pet.Snapshot
}

func (f *fakeSource) Snapshot() pet.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(s pet.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func adultSnap() pet.Snapshot {
	return pet.Snapshot{
		State: pet.State{
			Stage:        pet.StageAdult,
			FeedCapacity: 4,
			HealthScore:  8000,
		},
		Emotion: pet.EmotionIdle,
		Menu:    pet.MenuMain,
	}
}

func newTestRenderer(t *testing.T, src *fakeSource, hold time.Duration) (*Renderer, *MemDisplay, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(t0)
	disp := NewMemDisplay(128, 64)
	r := NewRenderer(Config{Display: disp, Source: src, Clock: clock, StartupHold: hold})
	return r, disp, clock
}

// boot renders the first frame, which pins bootedAt, then moves past the
// startup hold.
func boot(t *testing.T, r *Renderer, clock *timeutil.MockClock, hold time.Duration) {
	t.Helper()
	require.NoError(t, r.RenderFrame(clock.Now()))
	clock.Advance(hold + time.Second)
}

func regionLit(bm *Bitmap, x, y, w, h int) bool {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			if bm.At(x+dx, y+dy) {
				return true
			}
		}
	}
	return false
}

func TestBitmapPacking(t *testing.T) {
	t.Parallel()

	b := NewBitmap(16, 2)
	b.Set(0, 0, true)
	b.Set(8, 1, true)
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x80}, b.Bytes())

	// rows pad to whole bytes
	n := NewBitmap(10, 1)
	n.Set(9, 0, true)
	assert.Equal(t, []byte{0x00, 0x40}, n.Bytes())

	assert.True(t, b.At(0, 0))
	assert.False(t, b.At(1, 0))
	b.Set(0, 0, false)
	assert.False(t, b.At(0, 0))

	// out of bounds writes are dropped, reads are off
	b.Set(-1, 0, true)
	b.Set(16, 0, true)
	assert.False(t, b.At(-1, 0))
	assert.False(t, b.At(99, 99))
}

func TestParseBitmapMatchesString(t *testing.T) {
	t.Parallel()
	rows := []string{
		"#..#",
		".##.",
		".##.",
		"#..#",
	}
	b := ParseBitmap(rows)
	assert.Equal(t, "#..#\n.##.\n.##.\n#..#\n", b.String())
	assert.Equal(t, 8, b.CountOn())
}

func TestCatalogCoversEveryEmotionAndStage(t *testing.T) {
	t.Parallel()
	for stage := pet.StageInfant; stage <= pet.StageOld; stage++ {
		for _, emotion := range []pet.Emotion{
			pet.EmotionIdle, pet.EmotionHappy, pet.EmotionSad, pet.EmotionCrying, pet.EmotionSleeping,
		} {
			seq := Lookup(SequenceKey{Emotion: emotion, Stage: stage, Menu: pet.MenuMain})
			require.NotEmpty(t, seq.Name, "%s/%s", emotion, stage)
			require.NotEmpty(t, seq.Frames, "%s/%s", emotion, stage)
			for _, f := range seq.Frames {
				assert.Positive(t, f.Dwell)
				assert.Positive(t, f.Art.CountOn(), "blank frame in %s", seq.Name)
			}
		}
	}
}

func TestLookupFallsBackToIdle(t *testing.T) {
	t.Parallel()

	// a menu with no dedicated sad sequence reuses the main-screen one
	seq := Lookup(SequenceKey{Emotion: pet.EmotionSad, Stage: pet.StageAdult, Menu: pet.MenuClean})
	assert.Equal(t, "sad_adult", seq.Name)

	// an unknown emotion falls back to the stage idle
	seq = Lookup(SequenceKey{Emotion: pet.Emotion(99), Stage: pet.StageTeen, Menu: pet.MenuMain})
	assert.Equal(t, "idle_teen", seq.Name)

	// a completely unknown key still renders something
	seq = Lookup(SequenceKey{Emotion: pet.Emotion(99), Stage: pet.LifeStage(99), Menu: pet.Menu(99)})
	assert.Equal(t, "idle_infant", seq.Name)
	assert.NotEmpty(t, seq.Frames)
}

func TestMenuScreensDecorateIdle(t *testing.T) {
	t.Parallel()
	idle := Lookup(SequenceKey{Emotion: pet.EmotionIdle, Stage: pet.StageChild, Menu: pet.MenuMain})
	feed := Lookup(SequenceKey{Emotion: pet.EmotionIdle, Stage: pet.StageChild, Menu: pet.MenuFeed})
	assert.Equal(t, "idle_child_feed", feed.Name)
	assert.Greater(t, feed.Frames[0].Art.CountOn(), idle.Frames[0].Art.CountOn(),
		"feed screen should add a prop on top of the idle art")
}

func TestIdleBlinkTiming(t *testing.T) {
	t.Parallel()
	seq := Lookup(SequenceKey{Emotion: pet.EmotionIdle, Stage: pet.StageAdult, Menu: pet.MenuMain})
	require.Equal(t, 24, seq.Cycle())

	idx, _ := seq.FrameAt(0)
	assert.Equal(t, 0, idx)
	idx, _ = seq.FrameAt(21)
	assert.Equal(t, 0, idx)
	idx, _ = seq.FrameAt(22)
	assert.Equal(t, 1, idx, "blink frame")
	idx, _ = seq.FrameAt(23)
	assert.Equal(t, 1, idx)
	idx, _ = seq.FrameAt(24)
	assert.Equal(t, 0, idx, "cycle wraps")
}

func TestReactionSequences(t *testing.T) {
	t.Parallel()
	for _, kind := range []pet.ReactionKind{
		pet.ReactionEat, pet.ReactionClean, pet.ReactionMedicine, pet.ReactionPlay,
	} {
		seq, ok := ReactionSequence(kind, pet.StageAdult)
		require.True(t, ok)
		assert.NotEmpty(t, seq.Frames)
	}

	_, ok := ReactionSequence(pet.ReactionNone, pet.StageAdult)
	assert.False(t, ok)
}

func TestRenderFrameDrawsAndPresents(t *testing.T) {
	t.Parallel()
	src := &fakeSource{snap: adultSnap()}
	r, disp, clock := newTestRenderer(t, src, time.Millisecond)
	boot(t, r, clock, time.Millisecond)

	require.NoError(t, r.RenderFrame(clock.Now()))
	assert.Equal(t, 2, disp.Presents())
	assert.Positive(t, disp.Front().CountOn())

	meta := r.Meta()
	assert.Equal(t, "idle_adult", meta.Sequence)
	assert.Equal(t, "main", meta.ScreenType)
	assert.True(t, meta.ShowHomeIcon)
	assert.False(t, meta.ShowFoodIcon)
	assert.False(t, meta.ShowPoopIcon)
}

func TestStartupHoldLocksInfant(t *testing.T) {
	t.Parallel()
	snap := adultSnap()
	snap.Emotion = pet.EmotionHappy
	snap.IsHungry = true
	src := &fakeSource{snap: snap}
	r, disp, clock := newTestRenderer(t, src, 5*time.Second)

	require.NoError(t, r.RenderFrame(clock.Now()))
	assert.Equal(t, "idle_infant", r.Meta().Sequence)

	clock.Advance(4900 * time.Millisecond)
	require.NoError(t, r.RenderFrame(clock.Now()))
	meta := r.Meta()
	assert.Equal(t, "idle_infant", meta.Sequence, "still inside the startup hold")
	assert.False(t, meta.ShowFoodIcon, "icons stay off during the hold")
	assert.False(t, regionLit(disp.Front(), 110, 1, 8, 8))

	clock.Advance(200 * time.Millisecond)
	require.NoError(t, r.RenderFrame(clock.Now()))
	meta = r.Meta()
	assert.Equal(t, "happy_adult", meta.Sequence)
	assert.True(t, meta.ShowFoodIcon)
}

func TestStatusIcons(t *testing.T) {
	t.Parallel()
	snap := adultSnap()
	snap.IsHungry = true
	snap.IsDirty = true
	snap.Emotion = pet.EmotionSad
	src := &fakeSource{snap: snap}
	r, disp, clock := newTestRenderer(t, src, time.Millisecond)
	boot(t, r, clock, time.Millisecond)

	require.NoError(t, r.RenderFrame(clock.Now()))
	meta := r.Meta()
	assert.True(t, meta.ShowHomeIcon)
	assert.True(t, meta.ShowFoodIcon)
	assert.True(t, meta.ShowPoopIcon)

	front := disp.Front()
	assert.True(t, regionLit(front, 1, 1, 8, 8), "home icon")
	assert.True(t, regionLit(front, 110, 1, 8, 8), "food icon")
	assert.True(t, regionLit(front, 119, 1, 8, 8), "poop icon")
}

func TestHealthMenuBars(t *testing.T) {
	t.Parallel()
	snap := adultSnap()
	snap.Menu = pet.MenuHealth
	snap.HealthScore = pet.HealthMax / 2
	snap.HungerLevel = 1
	src := &fakeSource{snap: snap}
	r, disp, clock := newTestRenderer(t, src, time.Millisecond)
	boot(t, r, clock, time.Millisecond)

	require.NoError(t, r.RenderFrame(clock.Now()))
	meta := r.Meta()
	assert.Equal(t, "health", meta.ScreenType)
	assert.False(t, meta.ShowHomeIcon)

	front := disp.Front()
	assert.True(t, regionLit(front, 15, 52, 40, 3), "health bar fill")
	assert.True(t, regionLit(front, 15, 59, 40, 3), "hunger bar fill")
}

func TestReactionOverridesEmotion(t *testing.T) {
	t.Parallel()
	snap := adultSnap()
	snap.Reaction = pet.ReactionEat
	src := &fakeSource{snap: snap}
	r, _, clock := newTestRenderer(t, src, time.Millisecond)
	boot(t, r, clock, time.Millisecond)

	require.NoError(t, r.RenderFrame(clock.Now()))
	meta := r.Meta()
	assert.Equal(t, "eat_adult", meta.Sequence)
	assert.Equal(t, 0, meta.FrameIndex, "sequence restarts on switch")

	// reaction expires, back to idle from its first frame
	snap.Reaction = pet.ReactionNone
	src.set(snap)
	require.NoError(t, r.RenderFrame(clock.Now()))
	meta = r.Meta()
	assert.Equal(t, "idle_adult", meta.Sequence)
	assert.Equal(t, 0, meta.FrameIndex)
}

func TestRendererTrustsResolvedEmotion(t *testing.T) {
	t.Parallel()
	// contradictory flags must not matter: only the resolved emotion in
	// the snapshot drives frame selection
	snap := adultSnap()
	snap.IsSick = true
	snap.IsDirty = true
	snap.Emotion = pet.EmotionHappy
	src := &fakeSource{snap: snap}
	r, _, clock := newTestRenderer(t, src, time.Millisecond)
	boot(t, r, clock, time.Millisecond)

	require.NoError(t, r.RenderFrame(clock.Now()))
	assert.Equal(t, "happy_adult", r.Meta().Sequence)
}

type flakyDisplay struct {
	*MemDisplay
	mu   sync.Mutex
	fail bool
}

func (d *flakyDisplay) Present() error {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail {
		return errors.New("panel i2c timeout")
	}
	return d.MemDisplay.Present()
}

func (d *flakyDisplay) setFail(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = v
}

func TestRunLoopSurvivesDisplayFaults(t *testing.T) {
	t.Parallel()
	src := &fakeSource{snap: adultSnap()}
	clock := timeutil.NewMockClock(t0)
	disp := &flakyDisplay{MemDisplay: NewMemDisplay(128, 64), fail: true}
	r := NewRenderer(Config{Display: disp, Source: src, Clock: clock, StartupHold: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// frames fail while the panel is down but the loop keeps ticking
	require.Eventually(t, func() bool {
		clock.Advance(125 * time.Millisecond)
		return r.Meta().Sequence != ""
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, disp.Presents())

	disp.setFail(false)
	require.Eventually(t, func() bool {
		clock.Advance(125 * time.Millisecond)
		return disp.Presents() >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
