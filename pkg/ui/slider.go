package ui

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Slider is a horizontal value picker. A drag that starts on the slider keeps
// tracking the cursor until the button is released, even outside the bar.
type Slider struct {
	Label    string
	Value    float64
	Min, Max float64
	Step     float64 // 0 for a continuous slider
	X, Y     float64
	W, H     float64
	Disabled bool

	dragging bool
	changed  bool
}

// NewSlider creates a continuous slider.
func NewSlider(x, y, width float64, label string, min, max, value float64) *Slider {
	s := &Slider{
		Label: label,
		Min:   min, Max: max,
		X: x, Y: y, W: width, H: 12,
	}
	s.Value = s.clamp(value)
	return s
}

// Update moves the value with the pointer.
func (s *Slider) Update(p Pointer) {
	if s.Disabled {
		s.dragging = false
		return
	}
	if p.Clicked(s.X, s.Y, s.W, s.H) {
		s.dragging = true
	}
	if !p.Pressed {
		s.dragging = false
	}
	if s.dragging {
		s.set(s.ValueAt(p.Position.X))
	}
}

// ValueAt returns the value under the screen abscissa x.
func (s *Slider) ValueAt(x float64) float64 {
	if s.W <= 0 {
		return s.Min
	}
	ratio := (x - s.X) / s.W
	return s.clamp(s.Min + ratio*(s.Max-s.Min))
}

// SetValue sets the value without reporting a change. Use it to mirror a value
// that changed elsewhere.
func (s *Slider) SetValue(v float64) {
	s.Value = s.clamp(v)
}

// Changed reports whether the user moved the value since the last call.
func (s *Slider) Changed() bool {
	c := s.changed
	s.changed = false
	return c
}

// Ratio is the position of the value in [0, 1].
func (s *Slider) Ratio() float64 {
	if s.Max == s.Min {
		return 0
	}
	return (s.Value - s.Min) / (s.Max - s.Min)
}

// Text renders the label and the value.
func (s *Slider) Text() string {
	if s.Step >= 1 {
		return fmt.Sprintf("%s: %.0f", s.Label, s.Value)
	}
	return fmt.Sprintf("%s: %.2f", s.Label, s.Value)
}

func (s *Slider) set(v float64) {
	if v != s.Value {
		s.Value = v
		s.changed = true
	}
}

func (s *Slider) clamp(v float64) float64 {
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
	}
	return math.Max(s.Min, math.Min(s.Max, v))
}

// Draw renders the slider
func (s *Slider) Draw(screen *ebiten.Image) {
	bar := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	if s.Disabled {
		bar = color.RGBA{R: 120, G: 90, B: 90, A: 255}
	}
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W), float32(s.H), color.RGBA{R: 80, G: 80, B: 80, A: 255}, true)
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W*s.Ratio()), float32(s.H), bar, true)
}
