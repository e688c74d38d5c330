package render

import (
	"fmt"

	"github.com/jaspreeeet/kaku/internal/pet"
)

// Creature art is drawn procedurally on a fixed canvas rather than shipped
// as pixel assets: each frame composes a body sized by life stage with an
// eye/mouth pose picked by emotion. PetW by PetH is the canvas the catalog
// draws on; the renderer centers it on the panel.
const (
	PetW = 48
	PetH = 40
)

// SequenceKey selects a frame sequence. Lookup is a pure function of the
// key; unknown combinations fall back to the idle sequence for the stage.
type SequenceKey struct {
	Emotion pet.Emotion
	Stage   pet.LifeStage
	Menu    pet.Menu
}

// Frame is one catalog bitmap with the number of render ticks it holds.
type Frame struct {
	Art   *Bitmap
	Dwell int
}

// Sequence is a named, looping frame cycle.
type Sequence struct {
	Name   string
	Frames []Frame
}

// Cycle returns the sequence length in render ticks.
func (s Sequence) Cycle() int {
	n := 0
	for _, f := range s.Frames {
		n += f.Dwell
	}
	return n
}

// FrameAt maps a monotonically increasing tick counter to the frame shown
// at that tick. The same tick always yields the same frame, which is what
// keeps the idle blink deterministic.
func (s Sequence) FrameAt(tick uint64) (int, *Bitmap) {
	cycle := s.Cycle()
	if cycle == 0 {
		return 0, NewBitmap(PetW, PetH)
	}
	pos := int(tick % uint64(cycle))
	for i, f := range s.Frames {
		if pos < f.Dwell {
			return i, f.Art
		}
		pos -= f.Dwell
	}
	return 0, s.Frames[0].Art
}

type eyeStyle int

const (
	eyesOpen eyeStyle = iota
	eyesClosed
	eyesHappy
)

type mouthStyle int

const (
	mouthFlat mouthStyle = iota
	mouthSmile
	mouthFrown
	mouthOpen
)

// pose is everything that varies between two frames of the same creature.
type pose struct {
	eyes     eyeStyle
	mouth    mouthStyle
	lift     int // pixels the body is raised for a bounce frame
	tears    bool
	tearsLow bool // tears drawn one step further down
	zzz      int  // sleep particles, 0 to 2
}

type geometry struct {
	bodyW, bodyH int
	earH         int
	cane         bool
}

var stageGeometries = [...]geometry{
	pet.StageInfant: {bodyW: 14, bodyH: 10, earH: 2},
	pet.StageChild:  {bodyW: 18, bodyH: 14, earH: 3},
	pet.StageTeen:   {bodyW: 22, bodyH: 17, earH: 4},
	pet.StageAdult:  {bodyW: 26, bodyH: 20, earH: 4},
	pet.StageOld:    {bodyW: 26, bodyH: 19, earH: 2, cane: true},
}

// drawCreature renders one frame of the creature onto a fresh canvas.
func drawCreature(stage pet.LifeStage, p pose) *Bitmap {
	c := NewBitmap(PetW, PetH)
	g := stageGeometries[pet.StageAdult]
	if int(stage) >= 0 && int(stage) < len(stageGeometries) {
		g = stageGeometries[stage]
	}

	bx := (PetW - g.bodyW) / 2
	by := PetH - g.bodyH - 2 - p.lift

	c.Rect(bx, by, g.bodyW, g.bodyH)
	c.VLine(bx+2, by-g.earH, g.earH)
	c.VLine(bx+g.bodyW-3, by-g.earH, g.earH)

	eyeY := by + g.bodyH/3
	leftX := bx + g.bodyW/4
	rightX := bx + g.bodyW - g.bodyW/4 - 2
	switch p.eyes {
	case eyesOpen:
		c.Fill(leftX, eyeY, 2, 2)
		c.Fill(rightX, eyeY, 2, 2)
	case eyesClosed:
		c.HLine(leftX-1, eyeY+1, 3)
		c.HLine(rightX-1, eyeY+1, 3)
	case eyesHappy:
		c.HLine(leftX-1, eyeY+1, 3)
		c.Set(leftX, eyeY, true)
		c.HLine(rightX-1, eyeY+1, 3)
		c.Set(rightX, eyeY, true)
	}

	mouthY := by + (2*g.bodyH)/3
	mouthX := bx + g.bodyW/2 - 2
	switch p.mouth {
	case mouthFlat:
		c.HLine(mouthX, mouthY, 5)
	case mouthSmile:
		c.HLine(mouthX, mouthY, 5)
		c.Set(mouthX, mouthY-1, true)
		c.Set(mouthX+4, mouthY-1, true)
	case mouthFrown:
		c.HLine(mouthX, mouthY, 5)
		c.Set(mouthX, mouthY+1, true)
		c.Set(mouthX+4, mouthY+1, true)
	case mouthOpen:
		c.Rect(mouthX+1, mouthY-1, 3, 3)
	}

	if p.tears {
		drop := 0
		if p.tearsLow {
			drop = 2
		}
		c.VLine(leftX, eyeY+3+drop, 2)
		c.VLine(rightX+1, eyeY+3+drop, 2)
	}

	for i := 0; i < p.zzz; i++ {
		drawZ(c, bx+g.bodyW+2+i*5, by-g.earH-4-i*6)
	}

	if g.cane {
		c.VLine(bx-3, by+g.bodyH/2, g.bodyH/2+2)
		c.HLine(bx-4, by+g.bodyH/2, 3)
	}

	return c
}

// drawZ draws a 3x4 sleep particle.
func drawZ(c *Bitmap, x, y int) {
	c.HLine(x, y, 3)
	c.Set(x+1, y+1, true)
	c.HLine(x, y+2, 3)
}

func buildSequences(stage pet.LifeStage) map[pet.Emotion]Sequence {
	name := func(e pet.Emotion) string {
		return fmt.Sprintf("%s_%s", e, stage)
	}
	return map[pet.Emotion]Sequence{
		pet.EmotionIdle: {
			Name: name(pet.EmotionIdle),
			Frames: []Frame{
				{Art: drawCreature(stage, pose{eyes: eyesOpen, mouth: mouthFlat}), Dwell: 22},
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFlat}), Dwell: 2},
			},
		},
		pet.EmotionHappy: {
			Name: name(pet.EmotionHappy),
			Frames: []Frame{
				{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile}), Dwell: 4},
				{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile, lift: 2}), Dwell: 4},
			},
		},
		pet.EmotionSad: {
			Name: name(pet.EmotionSad),
			Frames: []Frame{
				{Art: drawCreature(stage, pose{eyes: eyesOpen, mouth: mouthFrown}), Dwell: 12},
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFrown}), Dwell: 4},
			},
		},
		pet.EmotionCrying: {
			Name: name(pet.EmotionCrying),
			Frames: []Frame{
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthOpen, tears: true}), Dwell: 4},
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthOpen, tears: true, tearsLow: true}), Dwell: 4},
			},
		},
		pet.EmotionSleeping: {
			Name: name(pet.EmotionSleeping),
			Frames: []Frame{
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFlat, zzz: 1}), Dwell: 8},
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFlat, zzz: 2}), Dwell: 8},
			},
		},
	}
}

// withProp copies a frame and draws extra decoration on the copy.
func withProp(f Frame, draw func(*Bitmap)) Frame {
	art := f.Art.Clone()
	draw(art)
	return Frame{Art: art, Dwell: f.Dwell}
}

func drawDish(c *Bitmap) {
	c.HLine(PetW/2-14, PetH-2, 8)
	c.HLine(PetW/2-13, PetH-1, 6)
}

func drawBroom(c *Bitmap) {
	x := PetW - 8
	c.VLine(x, PetH-12, 8)
	c.VLine(x-1, PetH-4, 3)
	c.VLine(x, PetH-4, 3)
	c.VLine(x+1, PetH-4, 3)
}

func drawBall(c *Bitmap) {
	c.Fill(4, PetH-5, 3, 3)
}

var menuProps = map[pet.Menu]func(*Bitmap){
	pet.MenuFeed:  drawDish,
	pet.MenuClean: drawBroom,
	pet.MenuPlay:  drawBall,
}

func buildCatalog() map[SequenceKey]Sequence {
	out := make(map[SequenceKey]Sequence)
	for stage := pet.StageInfant; stage <= pet.StageOld; stage++ {
		seqs := buildSequences(stage)
		for emotion, seq := range seqs {
			out[SequenceKey{Emotion: emotion, Stage: stage, Menu: pet.MenuMain}] = seq
		}
		// menu screens decorate the idle cycle with a prop
		idle := seqs[pet.EmotionIdle]
		for menu, prop := range menuProps {
			frames := make([]Frame, len(idle.Frames))
			for i, f := range idle.Frames {
				frames[i] = withProp(f, prop)
			}
			out[SequenceKey{Emotion: pet.EmotionIdle, Stage: stage, Menu: menu}] = Sequence{
				Name:   fmt.Sprintf("%s_%s", idle.Name, menu),
				Frames: frames,
			}
		}
	}
	return out
}

var catalog = buildCatalog()

// Lookup resolves a key to its frame sequence. Misses fall back first to
// the same emotion on the main screen, then to the stage's idle sequence,
// so the panel never goes blank.
func Lookup(key SequenceKey) Sequence {
	if seq, ok := catalog[key]; ok {
		return seq
	}
	if seq, ok := catalog[SequenceKey{Emotion: key.Emotion, Stage: key.Stage, Menu: pet.MenuMain}]; ok {
		return seq
	}
	if seq, ok := catalog[SequenceKey{Emotion: pet.EmotionIdle, Stage: key.Stage, Menu: pet.MenuMain}]; ok {
		return seq
	}
	return catalog[SequenceKey{Emotion: pet.EmotionIdle, Stage: pet.StageInfant, Menu: pet.MenuMain}]
}

func buildReactions() map[pet.ReactionKind]map[pet.LifeStage]Sequence {
	out := make(map[pet.ReactionKind]map[pet.LifeStage]Sequence)
	for kind := pet.ReactionEat; kind <= pet.ReactionPlay; kind++ {
		out[kind] = make(map[pet.LifeStage]Sequence)
	}
	for stage := pet.StageInfant; stage <= pet.StageOld; stage++ {
		chew := func(food func(*Bitmap)) []Frame {
			return []Frame{
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesOpen, mouth: mouthOpen}), Dwell: 5}, food),
				{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFlat}), Dwell: 5},
			}
		}
		out[pet.ReactionEat][stage] = Sequence{
			Name: fmt.Sprintf("eat_%s", stage),
			Frames: chew(func(c *Bitmap) {
				c.Fill(PetW/2-8, PetH-8, 4, 4)
			}),
		}
		out[pet.ReactionClean][stage] = Sequence{
			Name: fmt.Sprintf("clean_%s", stage),
			Frames: []Frame{
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile}), Dwell: 4}, func(c *Bitmap) {
					drawSparkle(c, 6, 6)
				}),
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile}), Dwell: 4}, func(c *Bitmap) {
					drawSparkle(c, PetW-9, 10)
				}),
			},
		}
		out[pet.ReactionMedicine][stage] = Sequence{
			Name: fmt.Sprintf("medicine_%s", stage),
			Frames: []Frame{
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesClosed, mouth: mouthFlat}), Dwell: 4}, func(c *Bitmap) {
					drawCross(c, PetW/2-2, 2)
				}),
				{Art: drawCreature(stage, pose{eyes: eyesOpen, mouth: mouthFlat}), Dwell: 4},
			},
		}
		out[pet.ReactionPlay][stage] = Sequence{
			Name: fmt.Sprintf("play_%s", stage),
			Frames: []Frame{
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile, lift: 2}), Dwell: 4}, func(c *Bitmap) {
					c.Fill(6, PetH-6, 3, 3)
				}),
				withProp(Frame{Art: drawCreature(stage, pose{eyes: eyesHappy, mouth: mouthSmile}), Dwell: 4}, func(c *Bitmap) {
					c.Fill(PetW-9, PetH-6, 3, 3)
				}),
			},
		}
	}
	return out
}

func drawSparkle(c *Bitmap, x, y int) {
	c.HLine(x-2, y, 5)
	c.VLine(x, y-2, 5)
}

func drawCross(c *Bitmap, x, y int) {
	c.VLine(x+2, y, 5)
	c.HLine(x, y+2, 5)
}

var reactions = buildReactions()

// ReactionSequence resolves the short overlay animation played after a
// care action. ReactionNone has no sequence.
func ReactionSequence(kind pet.ReactionKind, stage pet.LifeStage) (Sequence, bool) {
	byStage, ok := reactions[kind]
	if !ok {
		return Sequence{}, false
	}
	seq, ok := byStage[stage]
	return seq, ok
}
