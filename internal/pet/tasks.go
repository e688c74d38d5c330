package pet

import (
	"context"
	"time"

	"github.com/jaspreeeet/kaku/internal/monitoring"
	"github.com/jaspreeeet/kaku/internal/timeutil"
)

// dirtyCleanlinessPenalty is how much a poop event knocks off the
// cleanliness counter.
const dirtyCleanlinessPenalty = 30

// RunPoopCheck rolls the dirty-event probability once per check
// interval. The roll is skipped while the pet is asleep or already
// dirty, and calling again without a time advance changes nothing.
func (m *Machine) RunPoopCheck(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.state
	if s.AutoSleep || s.IsDirty {
		return false
	}
	if !m.lastPoopRoll.IsZero() && now.Sub(m.lastPoopRoll) < m.params.PoopCheckInterval {
		return false
	}
	m.lastPoopRoll = now
	prob := m.params.PoopBaseProbability * stagePoopMultiplier[s.Stage]
	prob += float64(s.OverfeedCount) * m.params.PoopOverfeedBoost
	if prob > m.params.PoopMaxProbability {
		prob = m.params.PoopMaxProbability
	}
	if m.rng.Float64() >= prob {
		return false
	}
	s.IsDirty = true
	s.DirtyStartTime = now
	s.OverfeedCount = 0
	s.Cleanliness = clampInt(s.Cleanliness-dirtyCleanlinessPenalty, 0, CleanlinessMax)
	s.UpdatedAt = now
	monitoring.Logf("pet: pooped (roll at %.2f)", prob)
	return true
}

// RunAutoClean clears a dirty pet once enough steps have accumulated
// since the last clean, or after dwelling in the clean menu. Auto
// cleaning carries no health bonus; only a deliberate Clean does.
func (m *Machine) RunAutoClean(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.state
	if !s.IsDirty {
		return false
	}
	byWalk := s.StepsSinceClean >= m.params.AutoCleanSteps
	byDwell := m.menu == MenuClean && !m.menuChangedAt.IsZero() &&
		now.Sub(m.menuChangedAt) >= m.params.CleanDwell
	if !byWalk && !byDwell {
		return false
	}
	if byWalk {
		monitoring.Logf("pet: auto-cleaned after %d steps", s.StepsSinceClean)
	} else {
		monitoring.Logf("pet: auto-cleaned after dwell in clean menu")
	}
	m.cleanLocked(now, false)
	return true
}

// RunHealthCheck applies the neglect penalties and decides sickness
// onset. Sustained dirtiness, sustained hunger and low discipline each
// make the pet sick; prolonged inactivity erodes health on its own.
// Recovery happens only at wake, after enough uninterrupted rest.
func (m *Machine) RunHealthCheck(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastHealthCheck.IsZero() && now.Sub(m.lastHealthCheck) < m.params.HealthCheckInterval {
		return false
	}
	m.lastHealthCheck = now
	s := &m.state
	changed := false
	if s.IsDirty && !s.DirtyStartTime.IsZero() && now.Sub(s.DirtyStartTime) > m.params.DirtySickAfter {
		m.addHealthLocked(-m.params.DirtyHealthPenalty)
		m.addDisciplineLocked(-m.params.NeglectDisciplinePenalty)
		changed = true
		if !s.IsSick {
			s.IsSick = true
			s.SickStartTime = now
			monitoring.Logf("pet: sick from staying dirty")
		}
	}
	if s.IsHungry && !s.HungerStartTime.IsZero() && now.Sub(s.HungerStartTime) > m.params.HungrySickAfter {
		m.addHealthLocked(-m.params.HungryHealthPenalty)
		m.addDisciplineLocked(-m.params.NeglectDisciplinePenalty)
		changed = true
		if !s.IsSick {
			s.IsSick = true
			s.SickStartTime = now
			monitoring.Logf("pet: sick from hunger")
		}
	}
	if !s.IsSick && s.Discipline < m.params.DisciplineSickFloor {
		s.IsSick = true
		s.SickStartTime = now
		changed = true
		monitoring.Logf("pet: sick from low discipline %d", s.Discipline)
	}
	if !s.AutoSleep && !s.LastWalkTime.IsZero() && now.Sub(s.LastWalkTime) > m.params.InactivityAfter {
		m.addHealthLocked(-m.params.InactivityPenalty)
		changed = true
	}
	if changed {
		s.UpdatedAt = now
	}
	return changed
}

// RunHungerSchedule fires the next scheduled hunger onset. The schedule
// is set on every feed with stage-dependent randomized bounds; firing
// marks the pet hungry with a fresh hunger clock and zero level, so one
// prompt portion sates it. Onset defers while the pet sleeps.
func (m *Machine) RunHungerSchedule(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.state
	if s.IsHungry || s.AutoSleep {
		return false
	}
	if s.NextHungerAt.IsZero() {
		s.NextHungerAt = now.Add(m.nextHungerIntervalLocked())
		return false
	}
	if now.Before(s.NextHungerAt) {
		return false
	}
	s.IsHungry = true
	s.HungerLevel = 0
	s.HungerStartTime = now
	s.NextHungerAt = time.Time{}
	s.UpdatedAt = now
	monitoring.Logf("pet: hungry, scheduled onset")
	return true
}

// RunSleepSchedule puts the pet to sleep at its scheduled bedtime. The
// first call on a fresh pet only primes the schedule.
func (m *Machine) RunSleepSchedule(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.state
	if s.AutoSleep {
		return false
	}
	if s.NextSleepAt.IsZero() {
		s.NextSleepAt = now.Add(m.params.AwakeDuration)
		return false
	}
	if now.Before(s.NextSleepAt) {
		return false
	}
	s.AutoSleep = true
	s.SleepStartTime = now
	s.NextSleepAt = time.Time{}
	s.UpdatedAt = now
	monitoring.Logf("pet: auto sleep started")
	return true
}

// RolloverDay closes the previous day's statistics when the calendar
// date changes. The first call only primes the day key.
func (m *Machine) RolloverDay(now time.Time) (DailyRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := now.Format(time.DateOnly)
	s := &m.state
	if s.LastRollupDay == day {
		return DailyRecord{}, false
	}
	if s.LastRollupDay == "" {
		s.LastRollupDay = day
		return DailyRecord{}, false
	}
	rec := DailyRecord{
		Day:         s.LastRollupDay,
		Steps:       s.DailySteps,
		HealthScore: s.HealthScore,
		Activity:    ActivityFor(s.DailySteps),
	}
	s.DailySteps = 0
	s.LastRollupDay = day
	s.UpdatedAt = now
	monitoring.Logf("pet: day %s closed with %d steps (%s)", rec.Day, rec.Steps, rec.Activity)
	return rec, true
}

// ExportState returns a copy of the persisted state.
func (m *Machine) ExportState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Store persists the pet between runs. The engine treats persistence as
// best effort: a failed write is logged and retried on the next cycle.
type Store interface {
	SavePetState(ctx context.Context, s State) error
	SaveDailyStats(ctx context.Context, rec DailyRecord) error
}

// Engine drives the background checks on a single low-frequency ticker.
// Each check gates itself on absolute timestamps, so the engine simply
// invokes all of them every tick and late ticks catch up on their own.
type Engine struct {
	machine *Machine
	store   Store
	clock   timeutil.Clock

	// TickInterval is the cadence of the check loop.
	TickInterval time.Duration
	// PersistInterval is how often the state is written to the store.
	PersistInterval time.Duration

	lastPersist time.Time
}

// NewEngine creates an engine. store may be nil to run without
// persistence.
func NewEngine(machine *Machine, store Store, clock timeutil.Clock) *Engine {
	return &Engine{
		machine:         machine,
		store:           store,
		clock:           clock,
		TickInterval:    time.Second,
		PersistInterval: 30 * time.Second,
	}
}

// RunOnce executes one pass of every check at the given instant.
func (e *Engine) RunOnce(ctx context.Context, now time.Time) {
	e.machine.Tick(now)
	e.machine.RunSleepSchedule(now)
	e.machine.RunHungerSchedule(now)
	e.machine.RunPoopCheck(now)
	e.machine.RunAutoClean(now)
	e.machine.RunHealthCheck(now)
	if rec, ok := e.machine.RolloverDay(now); ok && e.store != nil {
		if err := e.store.SaveDailyStats(ctx, rec); err != nil {
			monitoring.Logf("pet: saving daily stats failed: %v", err)
		}
	}
	e.persistIfDue(ctx, now)
}

func (e *Engine) persistIfDue(ctx context.Context, now time.Time) {
	if e.store == nil {
		return
	}
	if !e.lastPersist.IsZero() && now.Sub(e.lastPersist) < e.PersistInterval {
		return
	}
	e.lastPersist = now
	if err := e.store.SavePetState(ctx, e.machine.ExportState()); err != nil {
		monitoring.Logf("pet: persisting state failed: %v", err)
	}
}

// Run loops until the context is cancelled, then writes one final state
// snapshot so a clean shutdown never loses progress.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.TickInterval)
	defer ticker.Stop()
	monitoring.Logf("pet: task engine running, tick every %s", e.TickInterval)
	for {
		select {
		case <-ctx.Done():
			if e.store != nil {
				if err := e.store.SavePetState(context.Background(), e.machine.ExportState()); err != nil {
					monitoring.Logf("pet: final state save failed: %v", err)
				}
			}
			return ctx.Err()
		case <-ticker.C():
			e.RunOnce(ctx, e.clock.Now())
		}
	}
}
