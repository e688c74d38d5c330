package pet

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jaspreeeet/kaku/internal/gesture"
	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/timeutil"
)

var (
	// ErrFeedInProgress rejects a care action while a previous one is
	// still being committed or a gesture-armed feed awaits resolution.
	// Duplicate requests collapse to a single effect.
	ErrFeedInProgress = errors.New("care action already in progress")

	// ErrNoFeedAttempt rejects resolving a feed attempt that is not
	// pending, usually because its deadline already cancelled it.
	ErrNoFeedAttempt = errors.New("no feed attempt pending")
)

// Machine owns the live State and serializes every mutation behind one
// mutex. Readers take Snapshot copies instead of reading fields
// piecemeal, so no component ever observes a torn state.
type Machine struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	rng    *rand.Rand
	params Params

	state State

	// Display context. Kept outside State on purpose: menus are a
	// renderer concern and are neither persisted nor synced.
	menu          Menu
	menuChangedAt time.Time

	feedGuard         bool
	feedGuardDeadline time.Time
	feedPending       bool
	feedArmed         bool

	attentionUntil time.Time
	reaction       ReactionKind
	reactionUntil  time.Time

	// Gates for the scheduled checks, advanced only by elapsed time so
	// re-running a check without a time advance is a no-op.
	lastPoopRoll    time.Time
	lastHealthCheck time.Time
}

// NewMachine creates a machine with a newborn pet. Pass a fixed
// Params.Seed to make the probability rolls deterministic.
func NewMachine(clock timeutil.Clock, params Params) *Machine {
	params = params.withDefaults()
	seed := params.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	m := &Machine{
		clock:  clock,
		rng:    rand.New(rand.NewSource(seed)),
		params: params,
	}
	m.state = newbornState(clock.Now(), params)
	return m
}

func newbornState(now time.Time, p Params) State {
	return State{
		Stage:        StageInfant,
		FeedCapacity: 1,
		HealthScore:  p.StartHealth,
		Discipline:   DisciplineMax / 2,
		Cleanliness:  CleanlinessMax,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LoadState replaces the live state with a persisted one, clamping any
// field that drifted outside its bounds.
func (m *Machine) LoadState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.FeedCapacity < 1 {
		s.FeedCapacity = 1
	}
	if s.FeedCapacity > AbsoluteMaxFeedLevel {
		s.FeedCapacity = AbsoluteMaxFeedLevel
	}
	s.HungerLevel = clampInt(s.HungerLevel, 0, s.FeedCapacity)
	s.HealthScore = clampInt(s.HealthScore, 0, HealthMax)
	s.Discipline = clampInt(s.Discipline, 0, DisciplineMax)
	s.Cleanliness = clampInt(s.Cleanliness, 0, CleanlinessMax)
	if s.Stage < StageInfant || s.Stage > StageOld {
		s.Stage = StageInfant
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.clock.Now()
	}
	m.state = s
}

// Snapshot returns a consistent copy of the pet with the emotion
// resolved.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	return m.snapshotLocked(now)
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		State:       m.state,
		Emotion:     m.resolveEmotionLocked(now),
		Menu:        m.menu,
		FeedPending: m.feedGuard && m.feedPending,
		FeedArmed:   m.feedArmed,
		Attention:   now.Before(m.attentionUntil),
		At:          now,
	}
	if m.reaction != ReactionNone && now.Before(m.reactionUntil) {
		snap.Reaction = m.reaction
		snap.ReactionUntil = m.reactionUntil
	}
	return snap
}

// resolveEmotionLocked derives the single displayed emotion by strict
// priority, first match wins. The ordering makes contradictory states
// like "happy while sick" unrepresentable; rendering code consults this
// result and never re-derives emotion from the raw flags.
func (m *Machine) resolveEmotionLocked(now time.Time) Emotion {
	s := &m.state
	switch {
	case s.AutoSleep:
		return EmotionSleeping
	case s.IsSick:
		return EmotionSad
	case s.IsDirty:
		return EmotionSad
	case s.IsHungry:
		if s.Stage == StageInfant {
			return EmotionCrying
		}
		return EmotionSad
	case now.Before(m.attentionUntil):
		return EmotionHappy
	default:
		return EmotionIdle
	}
}

// ApplyGesture folds one recognized gesture into the simulation. Steps
// drive the counters and stage progression. Shake and a completed tilt
// hold arm a feed attempt when the feed menu is open. Cover gestures
// only move the display context, never the simulation fields.
func (m *Machine) ApplyGesture(ev gesture.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)

	switch ev.Kind {
	case gesture.KindStep:
		m.applyStepLocked(now)
	case gesture.KindShake, gesture.KindTiltHoldComplete:
		m.attentionUntil = now.Add(m.params.AttentionWindow)
		if m.menu == MenuFeed {
			if !m.beginFeedAttemptLocked(now) {
				monitoring.Logf("pet: feed attempt already in flight, %s ignored", ev.Kind)
			}
		}
	case gesture.KindTiltHoldStart:
		m.attentionUntil = now.Add(m.params.AttentionWindow)
	case gesture.KindCoverHold:
		m.setMenuLocked(m.menu.Next(), now)
	case gesture.KindCoverQuick:
		m.setMenuLocked(MenuMain, now)
	}
}

func (m *Machine) applyStepLocked(now time.Time) {
	s := &m.state
	before := s.TotalSteps
	s.TotalSteps++
	s.DailySteps++
	s.StepsSinceClean++
	s.LastWalkTime = now
	m.attentionUntil = now.Add(m.params.AttentionWindow)
	if s.IsFatty {
		s.IsFatty = false
		m.addHealthLocked(m.params.FattyRecoveryBonus)
		monitoring.Logf("pet: back on its feet after %d total steps", s.TotalSteps)
	}
	if before/m.params.StepMilestone != s.TotalSteps/m.params.StepMilestone {
		m.addHealthLocked(m.params.StepMilestoneBonus)
		monitoring.Logf("pet: step milestone %d, health %d", s.TotalSteps, s.HealthScore)
	}
	if m.menu == MenuFeed && s.IsHungry {
		m.feedArmed = true
	}
	m.advanceStageLocked()
	s.UpdatedAt = now
}

func (m *Machine) advanceStageLocked() {
	next := stageFor(m.state.Age, m.state.TotalSteps, m.state.Stage)
	if next != m.state.Stage {
		monitoring.Logf("pet: stage %s -> %s (age %d, steps %d)",
			m.state.Stage, next, m.state.Age, m.state.TotalSteps)
		m.state.Stage = next
	}
}

// Feed commits one portion immediately. It fails with ErrFeedInProgress
// while the guard is held by another care action or an unresolved feed
// attempt.
func (m *Machine) Feed() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	if m.feedGuard {
		return m.snapshotLocked(now), ErrFeedInProgress
	}
	m.commitFeedLocked(now)
	m.holdGuardLocked(now)
	return m.snapshotLocked(now), nil
}

func (m *Machine) commitFeedLocked(now time.Time) {
	s := &m.state
	overfed := s.HungerLevel == 0 && !s.IsHungry
	s.HungerLevel -= m.params.FeedPortion
	if s.HungerLevel < 0 {
		s.HungerLevel = 0
	}
	if s.HungerLevel == 0 {
		s.IsHungry = false
		s.HungerStartTime = time.Time{}
	}
	s.LastFeedTime = now
	s.NextHungerAt = now.Add(m.nextHungerIntervalLocked())
	if overfed {
		s.OverfeedCount++
		monitoring.Logf("pet: fed while sated, overfeed count %d", s.OverfeedCount)
	}
	m.feedArmed = false
	m.setReactionLocked(ReactionEat, now)
	m.attentionUntil = now.Add(m.params.AttentionWindow)
	s.UpdatedAt = now
}

// holdGuardLocked keeps the guard up for the commit window so duplicate
// care requests arriving mid-animation are rejected.
func (m *Machine) holdGuardLocked(now time.Time) {
	m.feedGuard = true
	m.feedPending = false
	m.feedGuardDeadline = now.Add(m.params.FeedCommitHold)
}

func (m *Machine) nextHungerIntervalLocked() time.Duration {
	b := hungerOnsetBounds[m.state.Stage]
	if b.max <= b.min {
		return b.min
	}
	return b.min + time.Duration(m.rng.Int63n(int64(b.max-b.min)))
}

// BeginFeedAttempt arms the feeding guard for a gesture-triggered feed.
// It returns false when another attempt or commit is in flight. The
// attempt self-cancels at its deadline if never resolved.
func (m *Machine) BeginFeedAttempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	return m.beginFeedAttemptLocked(now)
}

func (m *Machine) beginFeedAttemptLocked(now time.Time) bool {
	if m.feedGuard {
		return false
	}
	m.feedGuard = true
	m.feedPending = true
	m.feedGuardDeadline = now.Add(m.params.FeedGuardTimeout)
	monitoring.Logf("pet: feed attempt armed")
	return true
}

// ResolveFeedAttempt completes a gesture-armed feed attempt: accept
// commits the portion, reject clears the guard with no state change.
func (m *Machine) ResolveFeedAttempt(accept bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	if !m.feedGuard || !m.feedPending {
		return ErrNoFeedAttempt
	}
	m.feedPending = false
	if !accept {
		m.feedGuard = false
		m.feedGuardDeadline = time.Time{}
		monitoring.Logf("pet: feed attempt rejected")
		return nil
	}
	m.commitFeedLocked(now)
	m.feedGuardDeadline = now.Add(m.params.FeedCommitHold)
	return nil
}

// PendingFeedAttempt reports whether a gesture-armed feed awaits
// resolution.
func (m *Machine) PendingFeedAttempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireFeedGuardLocked(m.clock.Now())
	return m.feedGuard && m.feedPending
}

func (m *Machine) expireFeedGuardLocked(now time.Time) {
	if !m.feedGuard || m.feedGuardDeadline.IsZero() || now.Before(m.feedGuardDeadline) {
		return
	}
	wasPending := m.feedPending
	m.feedGuard = false
	m.feedPending = false
	m.feedGuardDeadline = time.Time{}
	if wasPending {
		monitoring.Logf("pet: feed attempt timed out, cancelled")
	}
}

// Clean removes the mess and restores cleanliness. Cleaning an already
// clean pet is a no-op, not an error.
func (m *Machine) Clean() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	if m.feedGuard {
		return m.snapshotLocked(now), ErrFeedInProgress
	}
	if m.state.IsDirty {
		m.cleanLocked(now, true)
		m.holdGuardLocked(now)
	}
	return m.snapshotLocked(now), nil
}

func (m *Machine) cleanLocked(now time.Time, bonus bool) {
	s := &m.state
	s.IsDirty = false
	s.DirtyStartTime = time.Time{}
	s.Cleanliness = clampInt(s.Cleanliness+m.params.CleanRestore, 0, CleanlinessMax)
	s.LastCleanTime = now
	s.StepsSinceClean = 0
	if bonus {
		m.addHealthLocked(m.params.CleanHealthBonus)
	}
	m.setReactionLocked(ReactionClean, now)
	m.attentionUntil = now.Add(m.params.AttentionWindow)
	s.UpdatedAt = now
}

// Medicate gives an injection. It only has an effect while the health
// score is under the medicine threshold; sickness itself clears through
// rest, never through medicine alone.
func (m *Machine) Medicate() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	if m.feedGuard {
		return m.snapshotLocked(now), ErrFeedInProgress
	}
	s := &m.state
	if s.HealthScore < m.params.MedicineThreshold {
		m.addHealthLocked(m.params.MedicineBonus)
		s.LastMedicateTime = now
		s.UpdatedAt = now
		m.setReactionLocked(ReactionMedicine, now)
		m.attentionUntil = now.Add(m.params.AttentionWindow)
		m.holdGuardLocked(now)
		monitoring.Logf("pet: medicated, health %d", s.HealthScore)
	}
	return m.snapshotLocked(now), nil
}

// Play runs a short play session, raising discipline and a little
// health. A sleeping pet is left alone.
func (m *Machine) Play() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	if m.feedGuard {
		return m.snapshotLocked(now), ErrFeedInProgress
	}
	s := &m.state
	if !s.AutoSleep {
		m.addDisciplineLocked(m.params.PlayDisciplineBonus)
		m.addHealthLocked(m.params.PlayHealthBonus)
		m.setReactionLocked(ReactionPlay, now)
		m.attentionUntil = now.Add(m.params.AttentionWindow)
		m.holdGuardLocked(now)
		s.UpdatedAt = now
	}
	return m.snapshotLocked(now), nil
}

// SetMenu switches the display context.
func (m *Machine) SetMenu(menu Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMenuLocked(menu, m.clock.Now())
}

// AdvanceMenu cycles to the next menu, wrapping to the main screen.
func (m *Machine) AdvanceMenu() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMenuLocked(m.menu.Next(), m.clock.Now())
}

// Menu returns the current display context.
func (m *Machine) Menu() Menu {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menu
}

func (m *Machine) setMenuLocked(menu Menu, now time.Time) {
	if menu == m.menu {
		return
	}
	m.menu = menu
	m.menuChangedAt = now
	m.feedArmed = false
	monitoring.Logf("pet: menu %s", menu)
}

// MarkAttention records that someone is interacting with the device,
// for example a face in front of the camera.
func (m *Machine) MarkAttention() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attentionUntil = m.clock.Now().Add(m.params.AttentionWindow)
}

// ResetSteps zeroes the daily step counter. Total steps are kept so the
// stage progression cannot move backwards.
func (m *Machine) ResetSteps() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.state.DailySteps = 0
	m.state.UpdatedAt = now
	return m.snapshotLocked(now)
}

// Reset hatches a fresh egg, discarding the current pet entirely.
func (m *Machine) Reset() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.state = newbornState(now, m.params)
	m.menu = MenuMain
	m.menuChangedAt = now
	m.feedGuard = false
	m.feedPending = false
	m.feedArmed = false
	m.feedGuardDeadline = time.Time{}
	m.reaction = ReactionNone
	m.attentionUntil = time.Time{}
	monitoring.Logf("pet: reset to newborn")
	return m.snapshotLocked(now)
}

// Tick advances the time-driven parts of the simulation: guard expiry,
// hunger escalation and waking from a finished sleep. Every comparison
// is against absolute timestamps, so a late tick catches up cleanly.
func (m *Machine) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireFeedGuardLocked(now)
	m.escalateHungerLocked(now)
	m.wakeIfDueLocked(now)
}

func (m *Machine) escalateHungerLocked(now time.Time) {
	s := &m.state
	// Escalation defers while the pet sleeps, like scheduled onset, and
	// the clock restarts at wake so sleep hours never count against it.
	if s.AutoSleep {
		return
	}
	ref := s.CreatedAt
	if s.LastFeedTime.After(ref) {
		ref = s.LastFeedTime
	}
	if s.EscalatedAt.After(ref) {
		ref = s.EscalatedAt
	}
	if s.LastWakeTime.After(ref) {
		ref = s.LastWakeTime
	}
	if ref.IsZero() || now.Sub(ref) < m.params.HungerEscalation {
		return
	}
	if s.FeedCapacity < AbsoluteMaxFeedLevel {
		s.FeedCapacity++
	}
	if !s.IsHungry {
		s.IsHungry = true
		s.HungerStartTime = now
	}
	if lvl := s.FeedCapacity - 1; s.HungerLevel < lvl {
		s.HungerLevel = lvl
	}
	s.EscalatedAt = now
	s.UpdatedAt = now
	monitoring.Logf("pet: hunger escalated, capacity %d level %d", s.FeedCapacity, s.HungerLevel)
}

func (m *Machine) wakeIfDueLocked(now time.Time) {
	s := &m.state
	if !s.AutoSleep || s.SleepStartTime.IsZero() {
		return
	}
	rested := now.Sub(s.SleepStartTime)
	if rested < m.params.SleepDuration {
		return
	}
	s.AutoSleep = false
	s.Age++
	s.LastWakeTime = now
	s.NextSleepAt = now.Add(m.params.AwakeDuration)
	lastWalk := s.LastWalkTime
	if lastWalk.IsZero() {
		lastWalk = s.CreatedAt
	}
	s.IsFatty = now.Sub(lastWalk) > m.params.FattyAfter
	if s.IsSick && rested >= m.params.SickRestMinimum &&
		!s.IsDirty && !s.IsHungry && s.Discipline >= m.params.DisciplineSickFloor {
		s.IsSick = false
		s.SickStartTime = time.Time{}
		monitoring.Logf("pet: recovered after %s of rest", rested.Round(time.Minute))
	}
	s.SleepStartTime = time.Time{}
	m.advanceStageLocked()
	s.UpdatedAt = now
	monitoring.Logf("pet: woke after %s, age %d, stage %s", rested.Round(time.Minute), s.Age, s.Stage)
}

// Reconcile folds remote care actions into the local state. Adoption is
// per action, keyed by timestamp: a remote action newer than the local
// one is replayed through the normal mutation path, anything older is
// kept local, so an unsynced local feed is never erased. Step counters
// are device truth and never adopted. A pending feed attempt defers
// remote feed adoption to the next sync cycle.
func (m *Machine) Reconcile(remote CareStamps) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.expireFeedGuardLocked(now)
	adopted := 0
	s := &m.state
	if !remote.FedAt.IsZero() && remote.FedAt.After(s.LastFeedTime) && !m.feedGuard {
		m.commitFeedLocked(now)
		s.LastFeedTime = remote.FedAt
		adopted++
	}
	if !remote.CleanedAt.IsZero() && remote.CleanedAt.After(s.LastCleanTime) {
		if s.IsDirty {
			m.cleanLocked(now, true)
		}
		s.LastCleanTime = remote.CleanedAt
		adopted++
	}
	if !remote.MedicatedAt.IsZero() && remote.MedicatedAt.After(s.LastMedicateTime) {
		if s.HealthScore < m.params.MedicineThreshold {
			m.addHealthLocked(m.params.MedicineBonus)
		}
		s.LastMedicateTime = remote.MedicatedAt
		adopted++
	}
	if adopted > 0 {
		s.UpdatedAt = now
		monitoring.Logf("pet: reconciled %d remote care actions", adopted)
	}
	return adopted
}

// CareTimes returns the local care stamps for the sync push.
func (m *Machine) CareTimes() CareStamps {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CareStamps{
		FedAt:       m.state.LastFeedTime,
		CleanedAt:   m.state.LastCleanTime,
		MedicatedAt: m.state.LastMedicateTime,
	}
}

func (m *Machine) setReactionLocked(kind ReactionKind, now time.Time) {
	m.reaction = kind
	m.reactionUntil = now.Add(m.params.ReactionDuration)
}

func (m *Machine) addHealthLocked(delta int) {
	m.state.HealthScore = clampInt(m.state.HealthScore+delta, 0, HealthMax)
}

func (m *Machine) addDisciplineLocked(delta int) {
	m.state.Discipline = clampInt(m.state.Discipline+delta, 0, DisciplineMax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
