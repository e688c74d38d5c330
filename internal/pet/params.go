package pet

import "time"

// Params holds the simulation tunables. Zero values are replaced by the
// defaults from DefaultParams.
type Params struct {
	// FeedPortion is how much one feed reduces HungerLevel.
	FeedPortion int
	// StartHealth is the health score of a newly created pet.
	StartHealth int

	// HungerEscalation is how long the pet may go unfed before the feed
	// capacity ratchets up and hunger jumps to capacity-1.
	HungerEscalation time.Duration
	// FeedGuardTimeout bounds a gesture-armed feed attempt. An attempt
	// not resolved by the deadline self-cancels.
	FeedGuardTimeout time.Duration
	// FeedCommitHold keeps the feeding guard up for the duration of the
	// eat animation, collapsing duplicate care requests into one effect.
	FeedCommitHold time.Duration

	// AttentionWindow is how long a care action or gesture counts as the
	// owner paying attention, which can lift the emotion to happy.
	AttentionWindow time.Duration
	// ReactionDuration is how long a post-care overlay animation plays.
	ReactionDuration time.Duration

	SleepDuration time.Duration
	AwakeDuration time.Duration
	// FattyAfter marks the pet as fatty when it wakes without having
	// walked for this long.
	FattyAfter time.Duration
	// SickRestMinimum is the uninterrupted rest needed before a sick pet
	// can recover, provided no other fault is active at wake.
	SickRestMinimum time.Duration

	DirtySickAfter      time.Duration
	HungrySickAfter     time.Duration
	InactivityAfter     time.Duration
	HealthCheckInterval time.Duration

	PoopCheckInterval   time.Duration
	PoopBaseProbability float64
	PoopOverfeedBoost   float64
	PoopMaxProbability  float64

	// AutoCleanSteps clears a dirty pet once this many steps accumulate
	// since the last clean, the walk shaking the mess off.
	AutoCleanSteps int64
	// CleanDwell clears a dirty pet after lingering this long in the
	// clean menu.
	CleanDwell time.Duration

	CleanRestore     int
	CleanHealthBonus int

	StepMilestone      int64
	StepMilestoneBonus int
	FattyRecoveryBonus int

	DirtyHealthPenalty       int
	HungryHealthPenalty      int
	InactivityPenalty        int
	NeglectDisciplinePenalty int
	DisciplineSickFloor      int

	PlayDisciplineBonus int
	PlayHealthBonus     int

	// MedicineThreshold is the health score under which an injection has
	// an effect; a healthy pet shrugs it off.
	MedicineThreshold int
	MedicineBonus     int

	// Seed fixes the probability rolls for tests. Zero seeds from the
	// clock.
	Seed int64
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		FeedPortion: 1,
		StartHealth: 8000,

		HungerEscalation: 4 * time.Hour,
		FeedGuardTimeout: 10 * time.Second,
		FeedCommitHold:   2 * time.Second,

		AttentionWindow:  15 * time.Second,
		ReactionDuration: 2 * time.Second,

		SleepDuration:   8 * time.Hour,
		AwakeDuration:   16 * time.Hour,
		FattyAfter:      24 * time.Hour,
		SickRestMinimum: 30 * time.Minute,

		DirtySickAfter:      15 * time.Minute,
		HungrySickAfter:     6 * time.Hour,
		InactivityAfter:     24 * time.Hour,
		HealthCheckInterval: time.Minute,

		PoopCheckInterval:   10 * time.Minute,
		PoopBaseProbability: 0.15,
		PoopOverfeedBoost:   0.2,
		PoopMaxProbability:  0.9,

		AutoCleanSteps: 300,
		CleanDwell:     10 * time.Second,

		CleanRestore:     CleanlinessMax,
		CleanHealthBonus: 50,

		StepMilestone:      1000,
		StepMilestoneBonus: 100,
		FattyRecoveryBonus: 150,

		DirtyHealthPenalty:       100,
		HungryHealthPenalty:      100,
		InactivityPenalty:        200,
		NeglectDisciplinePenalty: 2,
		DisciplineSickFloor:      20,

		PlayDisciplineBonus: 5,
		PlayHealthBonus:     25,

		MedicineThreshold: 5000,
		MedicineBonus:     1500,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.FeedPortion <= 0 {
		p.FeedPortion = def.FeedPortion
	}
	if p.StartHealth <= 0 {
		p.StartHealth = def.StartHealth
	}
	if p.HungerEscalation <= 0 {
		p.HungerEscalation = def.HungerEscalation
	}
	if p.FeedGuardTimeout <= 0 {
		p.FeedGuardTimeout = def.FeedGuardTimeout
	}
	if p.FeedCommitHold <= 0 {
		p.FeedCommitHold = def.FeedCommitHold
	}
	if p.AttentionWindow <= 0 {
		p.AttentionWindow = def.AttentionWindow
	}
	if p.ReactionDuration <= 0 {
		p.ReactionDuration = def.ReactionDuration
	}
	if p.SleepDuration <= 0 {
		p.SleepDuration = def.SleepDuration
	}
	if p.AwakeDuration <= 0 {
		p.AwakeDuration = def.AwakeDuration
	}
	if p.FattyAfter <= 0 {
		p.FattyAfter = def.FattyAfter
	}
	if p.SickRestMinimum <= 0 {
		p.SickRestMinimum = def.SickRestMinimum
	}
	if p.DirtySickAfter <= 0 {
		p.DirtySickAfter = def.DirtySickAfter
	}
	if p.HungrySickAfter <= 0 {
		p.HungrySickAfter = def.HungrySickAfter
	}
	if p.InactivityAfter <= 0 {
		p.InactivityAfter = def.InactivityAfter
	}
	if p.HealthCheckInterval <= 0 {
		p.HealthCheckInterval = def.HealthCheckInterval
	}
	if p.PoopCheckInterval <= 0 {
		p.PoopCheckInterval = def.PoopCheckInterval
	}
	if p.PoopBaseProbability <= 0 {
		p.PoopBaseProbability = def.PoopBaseProbability
	}
	if p.PoopOverfeedBoost <= 0 {
		p.PoopOverfeedBoost = def.PoopOverfeedBoost
	}
	if p.PoopMaxProbability <= 0 {
		p.PoopMaxProbability = def.PoopMaxProbability
	}
	if p.AutoCleanSteps <= 0 {
		p.AutoCleanSteps = def.AutoCleanSteps
	}
	if p.CleanDwell <= 0 {
		p.CleanDwell = def.CleanDwell
	}
	if p.CleanRestore <= 0 {
		p.CleanRestore = def.CleanRestore
	}
	if p.CleanHealthBonus <= 0 {
		p.CleanHealthBonus = def.CleanHealthBonus
	}
	if p.StepMilestone <= 0 {
		p.StepMilestone = def.StepMilestone
	}
	if p.StepMilestoneBonus <= 0 {
		p.StepMilestoneBonus = def.StepMilestoneBonus
	}
	if p.FattyRecoveryBonus <= 0 {
		p.FattyRecoveryBonus = def.FattyRecoveryBonus
	}
	if p.DirtyHealthPenalty <= 0 {
		p.DirtyHealthPenalty = def.DirtyHealthPenalty
	}
	if p.HungryHealthPenalty <= 0 {
		p.HungryHealthPenalty = def.HungryHealthPenalty
	}
	if p.InactivityPenalty <= 0 {
		p.InactivityPenalty = def.InactivityPenalty
	}
	if p.NeglectDisciplinePenalty <= 0 {
		p.NeglectDisciplinePenalty = def.NeglectDisciplinePenalty
	}
	if p.DisciplineSickFloor <= 0 {
		p.DisciplineSickFloor = def.DisciplineSickFloor
	}
	if p.PlayDisciplineBonus <= 0 {
		p.PlayDisciplineBonus = def.PlayDisciplineBonus
	}
	if p.PlayHealthBonus <= 0 {
		p.PlayHealthBonus = def.PlayHealthBonus
	}
	if p.MedicineThreshold <= 0 {
		p.MedicineThreshold = def.MedicineThreshold
	}
	if p.MedicineBonus <= 0 {
		p.MedicineBonus = def.MedicineBonus
	}
	return p
}
