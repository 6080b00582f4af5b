// Package ui holds the immediate-mode ebiten widgets of the flock viewer: sliders,
// checkboxes and buttons laid out in a scrollable panel with collapsible sections.
//
// Widgets never read the input devices themselves. The caller samples the mouse once
// per frame with ReadPointer and hands the Pointer down, so that a widget hidden by the
// panel scroll cannot react to a click.
package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Pointer is the state of the left mouse button and of the cursor for one frame.
type Pointer struct {
	Position    geometry.Vector2D
	Pressed     bool // held down
	JustPressed bool // went down this frame
	Wheel       float64
}

// ReadPointer samples the mouse.
func ReadPointer() Pointer {
	mx, my := ebiten.CursorPosition()
	_, dy := ebiten.Wheel()
	return Pointer{
		Position:    geometry.Vector2D{X: float64(mx), Y: float64(my)},
		Pressed:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		JustPressed: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		Wheel:       dy,
	}
}

// Clicked reports whether the button went down inside the rectangle this frame.
func (p Pointer) Clicked(x, y, w, h float64) bool {
	return p.JustPressed && p.Position.Inside(x, y, w, h)
}
