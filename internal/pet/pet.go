// Package pet implements the creature simulation: life stage and age,
// hunger, cleanliness, health, discipline, sickness and sleep, with a
// single priority-ordered emotion resolver on top.
//
// Machine is the only writer of State. Every other component either reads
// a Snapshot or mutates through the Machine's methods, so the simulation
// invariants hold no matter which loop (gestures, scheduled checks, sync,
// HTTP handlers) touches the pet.
package pet

import (
	"encoding/json"
	"fmt"
	"time"
)

// Hard bounds on the simulated attributes. Mutations clamp into these
// ranges at the point of write.
const (
	HealthMax            = 10000
	DisciplineMax        = 100
	CleanlinessMax       = 100
	AbsoluteMaxFeedLevel = 8
)

// LifeStage is the creature's maturity level. Stages only ever advance,
// except through an explicit Reset.
type LifeStage int

const (
	StageInfant LifeStage = iota
	StageChild
	StageTeen
	StageAdult
	StageOld
)

var stageNames = [...]string{
	StageInfant: "infant",
	StageChild:  "child",
	StageTeen:   "teen",
	StageAdult:  "adult",
	StageOld:    "old",
}

func (s LifeStage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// ParseLifeStage maps a stage name back to its value.
func ParseLifeStage(name string) (LifeStage, error) {
	for i, n := range stageNames {
		if n == name {
			return LifeStage(i), nil
		}
	}
	return StageInfant, fmt.Errorf("unknown life stage %q", name)
}

func (s LifeStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *LifeStage) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseLifeStage(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// stageThresholds lists when each stage unlocks. A transition requires
// both the age (completed sleep cycles) and the cumulative step count.
var stageThresholds = [...]struct {
	stage LifeStage
	age   int
	steps int64
}{
	{StageChild, 2, 2000},
	{StageTeen, 6, 10000},
	{StageAdult, 12, 30000},
	{StageOld, 30, 100000},
}

// stageFor returns the highest unlocked stage, never below current.
func stageFor(age int, totalSteps int64, current LifeStage) LifeStage {
	out := current
	for _, th := range stageThresholds {
		if age >= th.age && totalSteps >= th.steps && th.stage > out {
			out = th.stage
		}
	}
	return out
}

// hungerOnsetBounds holds the randomized interval between a feed and the
// next scheduled hunger onset. Older stages tolerate longer and less
// predictable gaps.
var hungerOnsetBounds = [...]struct {
	min, max time.Duration
}{
	StageInfant: {45 * time.Minute, 90 * time.Minute},
	StageChild:  {time.Hour, 3 * time.Hour},
	StageTeen:   {90 * time.Minute, 5 * time.Hour},
	StageAdult:  {2 * time.Hour, 8 * time.Hour},
	StageOld:    {2 * time.Hour, 10 * time.Hour},
}

// stagePoopMultiplier scales the poop probability roll by maturity.
var stagePoopMultiplier = [...]float64{
	StageInfant: 1.0,
	StageChild:  1.2,
	StageTeen:   1.4,
	StageAdult:  1.6,
	StageOld:    2.0,
}

// Emotion is the single affective state shown on the display. It is
// derived from the underlying flags on every read, never stored.
type Emotion int

const (
	EmotionIdle Emotion = iota
	EmotionHappy
	EmotionSad
	EmotionCrying
	EmotionSleeping
)

var emotionNames = [...]string{
	EmotionIdle:     "idle",
	EmotionHappy:    "happy",
	EmotionSad:      "sad",
	EmotionCrying:   "crying",
	EmotionSleeping: "sleeping",
}

func (e Emotion) String() string {
	if e < 0 || int(e) >= len(emotionNames) {
		return "unknown"
	}
	return emotionNames[e]
}

func (e Emotion) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Emotion) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range emotionNames {
		if n == name {
			*e = Emotion(i)
			return nil
		}
	}
	return fmt.Errorf("unknown emotion %q", name)
}

// Menu is the display context the renderer overlays on the creature.
// It is deliberately not part of State: switching menus is a display
// concern and never mutates the simulation.
type Menu int

const (
	MenuMain Menu = iota
	MenuFeed
	MenuClean
	MenuHealth
	MenuPlay
)

var menuNames = [...]string{
	MenuMain:   "main",
	MenuFeed:   "feed",
	MenuClean:  "clean",
	MenuHealth: "health",
	MenuPlay:   "play",
}

func (m Menu) String() string {
	if m < 0 || int(m) >= len(menuNames) {
		return "unknown"
	}
	return menuNames[m]
}

// Next cycles to the following menu, wrapping back to the main screen.
func (m Menu) Next() Menu {
	return Menu((int(m) + 1) % len(menuNames))
}

// ParseMenu maps a menu name back to its value.
func ParseMenu(name string) (Menu, error) {
	for i, n := range menuNames {
		if n == name {
			return Menu(i), nil
		}
	}
	return MenuMain, fmt.Errorf("unknown menu %q", name)
}

func (m Menu) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Menu) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseMenu(name)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ReactionKind is a short-lived overlay animation played after a care
// action, for example the chewing loop right after a feed.
type ReactionKind int

const (
	ReactionNone ReactionKind = iota
	ReactionEat
	ReactionClean
	ReactionMedicine
	ReactionPlay
)

var reactionNames = [...]string{
	ReactionNone:     "none",
	ReactionEat:      "eat",
	ReactionClean:    "clean",
	ReactionMedicine: "medicine",
	ReactionPlay:     "play",
}

func (r ReactionKind) String() string {
	if r < 0 || int(r) >= len(reactionNames) {
		return "unknown"
	}
	return reactionNames[r]
}

func (r ReactionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ReactionKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range reactionNames {
		if n == name {
			*r = ReactionKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown reaction %q", name)
}

// ActivityLevel buckets a day's step count for the daily statistics.
type ActivityLevel int

const (
	ActivityInactive ActivityLevel = iota
	ActivityLow
	ActivityModerate
	ActivityHigh
	ActivityVeryHigh
)

var activityNames = [...]string{
	ActivityInactive: "inactive",
	ActivityLow:      "low",
	ActivityModerate: "moderate",
	ActivityHigh:     "high",
	ActivityVeryHigh: "very_high",
}

func (a ActivityLevel) String() string {
	if a < 0 || int(a) >= len(activityNames) {
		return "unknown"
	}
	return activityNames[a]
}

func (a ActivityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *ActivityLevel) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range activityNames {
		if n == name {
			*a = ActivityLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown activity level %q", name)
}

// ActivityFor buckets a daily step count.
func ActivityFor(steps int64) ActivityLevel {
	switch {
	case steps <= 0:
		return ActivityInactive
	case steps < 500:
		return ActivityLow
	case steps < 2000:
		return ActivityModerate
	case steps < 5000:
		return ActivityHigh
	default:
		return ActivityVeryHigh
	}
}

// State is the persisted simulation state. The zero value of any
// timestamp means "unset". Machine owns the single live copy; everything
// outside the package works with value copies.
type State struct {
	Stage       LifeStage `json:"stage"`
	Age         int       `json:"age"`
	HungerLevel int       `json:"hunger_level"`
	// FeedCapacity is the upper bound on HungerLevel. It ratchets upward
	// as the pet is neglected, raising the difficulty, and is clamped to
	// [1, AbsoluteMaxFeedLevel].
	FeedCapacity int  `json:"feed_capacity"`
	HealthScore  int  `json:"health_score"`
	Discipline   int  `json:"discipline"`
	Cleanliness  int  `json:"cleanliness"`
	IsHungry     bool `json:"is_hungry"`
	IsDirty      bool `json:"is_dirty"`
	IsSick       bool `json:"is_sick"`
	IsFatty      bool `json:"is_fatty"`
	AutoSleep    bool `json:"auto_sleep"`

	TotalSteps      int64 `json:"total_steps"`
	DailySteps      int64 `json:"daily_steps"`
	StepsSinceClean int64 `json:"steps_since_clean"`
	// OverfeedCount tracks feeds given to an already sated pet. Each one
	// raises the next poop probability roll; a poop event consumes it.
	OverfeedCount int `json:"overfeed_count"`

	LastFeedTime     time.Time `json:"last_feed_time"`
	HungerStartTime  time.Time `json:"hunger_start_time"`
	NextHungerAt     time.Time `json:"next_hunger_at"`
	EscalatedAt      time.Time `json:"escalated_at"`
	DirtyStartTime   time.Time `json:"dirty_start_time"`
	LastCleanTime    time.Time `json:"last_clean_time"`
	LastMedicateTime time.Time `json:"last_medicate_time"`
	LastWalkTime     time.Time `json:"last_walk_time"`
	SleepStartTime   time.Time `json:"sleep_start_time"`
	NextSleepAt      time.Time `json:"next_sleep_at"`
	LastWakeTime     time.Time `json:"last_wake_time"`
	SickStartTime    time.Time `json:"sick_start_time"`

	LastRollupDay string    `json:"last_rollup_day"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CareStamps carries the server-side timestamps of the three care
// actions a companion backend can apply remotely. Reconcile adopts a
// group only when the remote stamp is strictly newer than the local one.
type CareStamps struct {
	FedAt       time.Time `json:"fed_at"`
	CleanedAt   time.Time `json:"cleaned_at"`
	MedicatedAt time.Time `json:"medicated_at"`
}

// DailyRecord is one closed day of statistics, produced by the daily
// rollover and persisted by the task engine.
type DailyRecord struct {
	Day         string        `json:"day"`
	Steps       int64         `json:"steps"`
	HealthScore int           `json:"health_score"`
	Activity    ActivityLevel `json:"activity"`
}

// Snapshot is a consistent point-in-time copy of the pet, including the
// derived emotion and the display context. Readers never see a torn
// state because the copy is taken under the machine lock.
type Snapshot struct {
	State

	Emotion       Emotion      `json:"emotion"`
	Menu          Menu         `json:"menu"`
	Reaction      ReactionKind `json:"reaction"`
	ReactionUntil time.Time    `json:"reaction_until"`
	// FeedPending reports a gesture-armed feed attempt awaiting
	// resolution by the classifier path.
	FeedPending bool `json:"feed_pending"`
	// FeedArmed reports that steps taken in the feed menu while hungry
	// have armed feeding eligibility.
	FeedArmed bool      `json:"feed_armed"`
	Attention bool      `json:"attention"`
	At        time.Time `json:"at"`
}
