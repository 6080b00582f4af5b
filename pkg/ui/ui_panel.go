package ui

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Panel layout, in pixels.
const (
	titleHeight   = 30.0
	sectionHeight = 25.0
	labelHeight   = 15.0
	scrollStep    = 20.0
	margin        = 10.0
)

// UIWidget is an interface for all UI widgets
type UIWidget interface {
	Update(p Pointer)
	Draw(screen *ebiten.Image)
	GetHeight() float64
	Caption() string
	setY(y float64)
}

// SliderWrapper wraps a Slider to implement UIWidget
type SliderWrapper struct {
	*Slider
}

func (s *SliderWrapper) GetHeight() float64 { return labelHeight + s.H + 10 }
func (s *SliderWrapper) Caption() string    { return s.Text() }
func (s *SliderWrapper) setY(y float64)     { s.Y = y }

// CheckboxWrapper wraps Checkbox to implement UIWidget
type CheckboxWrapper struct {
	*Checkbox
}

func (c *CheckboxWrapper) GetHeight() float64 { return labelHeight + c.Size + 5 }
func (c *CheckboxWrapper) Caption() string    { return c.Label }
func (c *CheckboxWrapper) setY(y float64)     { c.Y = y }

// PanelSection is a titled, collapsible run of widgets.
type PanelSection struct {
	Title      string
	StartIndex int // first widget of the section
	EndIndex   int // one past the last widget, -1 while the section is open
	Collapsed  bool

	headerY float64
	visible bool
}

// UIPanel manages a collection of UI widgets in a scrollable panel
type UIPanel struct {
	Title         string
	X, Y          float64
	Width, Height float64
	Widgets       []UIWidget
	ScrollOffset  float64

	// Styling
	BGColor     color.RGBA
	BorderColor color.RGBA

	sections      []*PanelSection
	rowY          []float64
	visible       []bool
	contentHeight float64
}

// NewUIPanel creates a new UI panel
func NewUIPanel(x, y, width, height float64) *UIPanel {
	return &UIPanel{
		Title:       "Configuration",
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		BGColor:     color.RGBA{R: 40, G: 40, B: 45, A: 230},
		BorderColor: color.RGBA{R: 100, G: 100, B: 110, A: 255},
	}
}

// AddSection starts a section. The previous section, if still open, ends here.
func (p *UIPanel) AddSection(title string) *PanelSection {
	p.EndSection()
	s := &PanelSection{Title: title, StartIndex: len(p.Widgets), EndIndex: -1}
	p.sections = append(p.sections, s)
	return s
}

// EndSection closes the current section
func (p *UIPanel) EndSection() {
	if n := len(p.sections); n > 0 && p.sections[n-1].EndIndex < 0 {
		p.sections[n-1].EndIndex = len(p.Widgets)
	}
}

// AddSlider adds a slider widget to the panel
func (p *UIPanel) AddSlider(label string, min, max, value float64) *Slider {
	s := NewSlider(p.X+margin, 0, p.Width-2*margin, label, min, max, value)
	p.add(&SliderWrapper{s})
	return s
}

// AddIntSlider adds a slider that snaps to integers.
func (p *UIPanel) AddIntSlider(label string, min, max, value int) *Slider {
	s := NewSlider(p.X+margin, 0, p.Width-2*margin, label, float64(min), float64(max), 0)
	s.Step = 1
	s.SetValue(float64(value))
	p.add(&SliderWrapper{s})
	return s
}

// AddCheckbox adds a checkbox widget to the panel
func (p *UIPanel) AddCheckbox(label string, value bool) *Checkbox {
	c := NewCheckbox(p.X+margin, 0, label, value)
	p.add(&CheckboxWrapper{c})
	return c
}

func (p *UIPanel) add(w UIWidget) {
	p.Widgets = append(p.Widgets, w)
	p.layout()
}

// Contains reports whether the pointer is over the panel.
func (p *UIPanel) Contains(ptr Pointer) bool {
	return ptr.Position.Inside(p.X, p.Y, p.Width, p.Height)
}

// Update scrolls the panel, toggles the clicked section and updates the visible
// widgets. Hidden widgets receive a released pointer.
func (p *UIPanel) Update(ptr Pointer) {
	if ptr.Wheel != 0 && p.Contains(ptr) {
		p.ScrollOffset -= ptr.Wheel * scrollStep
		p.clampScroll()
	}
	p.layout()

	for _, s := range p.sections {
		if s.visible && ptr.Clicked(p.X+5, s.headerY, p.Width-10, sectionHeight-5) {
			s.Collapsed = !s.Collapsed
			p.clampScroll()
			p.layout()
			break
		}
	}

	for i, w := range p.Widgets {
		if p.visible[i] {
			w.Update(ptr)
		} else {
			w.Update(Pointer{})
		}
	}
}

// Visible reports whether widget i is drawn and receives input.
func (p *UIPanel) Visible(i int) bool {
	return i >= 0 && i < len(p.visible) && p.visible[i]
}

func (p *UIPanel) clampScroll() {
	p.layout()
	maxScroll := math.Max(0, p.contentHeight-(p.Height-titleHeight))
	p.ScrollOffset = math.Max(0, math.Min(maxScroll, p.ScrollOffset))
}

// layout places the section headers and the widgets for the current scroll offset.
func (p *UIPanel) layout() {
	top := p.Y + titleHeight
	bottom := p.Y + p.Height
	y := top - p.ScrollOffset
	start := y

	p.rowY = append(p.rowY[:0], make([]float64, len(p.Widgets))...)
	p.visible = append(p.visible[:0], make([]bool, len(p.Widgets))...)

	var current *PanelSection
	next := 0
	placeHeaders := func(i int) {
		for next < len(p.sections) && p.sections[next].StartIndex == i {
			current = p.sections[next]
			current.headerY = y
			current.visible = y >= top && y+sectionHeight <= bottom
			y += sectionHeight
			next++
		}
	}

	for i, w := range p.Widgets {
		placeHeaders(i)
		if current != nil && current.Collapsed && (current.EndIndex < 0 || i < current.EndIndex) {
			continue
		}
		h := w.GetHeight()
		p.rowY[i] = y
		p.visible[i] = y >= top && y+h <= bottom
		w.setY(y + labelHeight)
		y += h
	}
	placeHeaders(len(p.Widgets))
	p.contentHeight = y - start
}

// Draw renders the panel and all widgets
func (p *UIPanel) Draw(screen *ebiten.Image) {
	p.layout()

	vector.FillRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		p.BGColor, true)
	vector.StrokeRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		2, p.BorderColor, true)
	ebitenutil.DebugPrintAt(screen, p.Title, int(p.X+margin), int(p.Y+5))

	for _, s := range p.sections {
		if !s.visible {
			continue
		}
		vector.FillRect(screen,
			float32(p.X+5), float32(s.headerY),
			float32(p.Width-10), sectionHeight-5,
			color.RGBA{R: 60, G: 60, B: 70, A: 255}, true)
		marker := "- "
		if s.Collapsed {
			marker = "+ "
		}
		ebitenutil.DebugPrintAt(screen, marker+s.Title, int(p.X+margin), int(s.headerY+2))
	}

	for i, w := range p.Widgets {
		if !p.visible[i] {
			continue
		}
		ebitenutil.DebugPrintAt(screen, w.Caption(), int(p.X+margin), int(p.rowY[i]-2))
		w.Draw(screen)
	}
}
