// Package sound synthesises audible alert cues on a single shared output device.
package sound

import "time"

// Kind selects a notification cue.
type Kind string

const (
	KindCritical Kind = "critical"
	KindWarning  Kind = "warning"
	KindInfo     Kind = "info"
	KindSuccess  Kind = "success"
)

// Shape describes how a pattern's frequencies are laid out in time.
type Shape string

const (
	ShapeSingle Shape = "single"
	ShapeDouble Shape = "double"
	ShapeTriple Shape = "triple"
	ShapeRapid  Shape = "rapid"
)

// Pattern is the fixed tone recipe of a Kind.
type Pattern struct {
	Frequencies []float64
	Duration    time.Duration
	Shape       Shape
}

// Tone is one scheduled oscillator burst. Offset is measured from the cue start.
type Tone struct {
	Frequency float64       `json:"frequency"`
	Offset    time.Duration `json:"offset"`
	Duration  time.Duration `json:"duration"`
}

// rapidRepeats is how many times a rapid pattern cycles its frequencies.
const rapidRepeats = 3

var patterns = map[Kind]Pattern{
	KindCritical: {Frequencies: []float64{880, 1100}, Duration: 150 * time.Millisecond, Shape: ShapeRapid},
	KindWarning:  {Frequencies: []float64{660}, Duration: 200 * time.Millisecond, Shape: ShapeDouble},
	KindInfo:     {Frequencies: []float64{520}, Duration: 180 * time.Millisecond, Shape: ShapeSingle},
	KindSuccess:  {Frequencies: []float64{523.25, 659.25, 783.99}, Duration: 120 * time.Millisecond, Shape: ShapeTriple},
}

// PatternFor returns the pattern of kind. Unknown kinds fall back to info.
func PatternFor(kind Kind) (Pattern, bool) {
	p, ok := patterns[kind]
	if !ok {
		p = patterns[KindInfo]
	}
	out := p
	out.Frequencies = append([]float64(nil), p.Frequencies...)
	return out, ok
}

// Expand lays out the tones of kind. The result depends only on kind.
func Expand(kind Kind) []Tone {
	p, _ := PatternFor(kind)
	d := p.Duration
	var tones []Tone
	switch p.Shape {
	case ShapeDouble:
		gap := d / 2
		for i := 0; i < 2; i++ {
			tones = append(tones, Tone{Frequency: p.Frequencies[0], Offset: time.Duration(i) * (d + gap), Duration: d})
		}
	case ShapeTriple:
		for i := 0; i < 3; i++ {
			tones = append(tones, Tone{Frequency: p.Frequencies[i%len(p.Frequencies)], Offset: time.Duration(i) * d, Duration: d})
		}
	case ShapeRapid:
		step := d / 2
		n := 0
		for r := 0; r < rapidRepeats; r++ {
			for _, f := range p.Frequencies {
				tones = append(tones, Tone{Frequency: f, Offset: time.Duration(n) * step, Duration: step})
				n++
			}
		}
	default:
		tones = append(tones, Tone{Frequency: p.Frequencies[0], Duration: d})
	}
	return tones
}

// Length returns the total play time of tones.
func Length(tones []Tone) time.Duration {
	var end time.Duration
	for _, t := range tones {
		if e := t.Offset + t.Duration; e > end {
			end = e
		}
	}
	return end
}
