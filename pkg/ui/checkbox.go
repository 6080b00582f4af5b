package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Checkbox is a simple UI widget for boolean values
type Checkbox struct {
	Label    string
	Value    bool
	X, Y     float64
	Size     float64
	Disabled bool

	changed bool
}

// NewCheckbox creates a new checkbox instance
func NewCheckbox(x, y float64, label string, value bool) *Checkbox {
	return &Checkbox{
		Label: label,
		Value: value,
		X:     x,
		Y:     y,
		Size:  16, // Default size
	}
}

// Update toggles the value when the box is clicked.
func (c *Checkbox) Update(p Pointer) {
	if c.Disabled || !p.Clicked(c.X, c.Y, c.Size, c.Size) {
		return
	}
	c.Value = !c.Value
	c.changed = true
}

// Changed reports whether the user toggled the value since the last call.
func (c *Checkbox) Changed() bool {
	ch := c.changed
	c.changed = false
	return ch
}

// Draw renders the checkbox
func (c *Checkbox) Draw(screen *ebiten.Image) {
	border := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	if c.Disabled {
		border = color.RGBA{R: 110, G: 110, B: 110, A: 255}
	}
	vector.StrokeRect(screen,
		float32(c.X), float32(c.Y),
		float32(c.Size), float32(c.Size),
		2, border, true)

	if c.Value {
		vector.FillRect(screen,
			float32(c.X+2), float32(c.Y+2),
			float32(c.Size-4), float32(c.Size-4),
			color.RGBA{R: 100, G: 200, B: 100, A: 255},
			true)
	}
}
