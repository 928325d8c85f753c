package screenshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when a point lies outside every active display.
var ErrNoDisplay = errors.New("no display contains point")

// Point is a screen coordinate in the shared pointer/capture space.
type Point struct {
	X int
	Y int
}

// Region is the normalized rectangle spanned by two corner points.
// Build it with RegionFrom; Width and Height are never negative.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RegionFrom derives the normalized rectangle between two arbitrary corners.
func RegionFrom(p1, p2 Point) Region {
	return Region{
		X:      min(p1.X, p2.X),
		Y:      min(p1.Y, p2.Y),
		Width:  abs(p2.X - p1.X),
		Height: abs(p2.Y - p1.Y),
	}
}

// Degenerate reports whether the region has no area and cannot be captured.
func (r Region) Degenerate() bool {
	return r.Width == 0 || r.Height == 0
}

// Origin returns the top-left corner.
func (r Region) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Rect converts the region to an image.Rectangle in screen coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.Width, r.Height, r.X, r.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Display is one capturable monitor surface.
type Display interface {
	Index() int
	Bounds() image.Rectangle
	// Capture returns the full monitor image in screen coordinates.
	Capture() (*image.RGBA, error)
}

// Backend maps a screen point to the display that contains it.
type Backend interface {
	DisplayAt(p Point) (Display, error)
}

// NewBackend returns the backend over the active OS displays.
func NewBackend() Backend { return kbBackend{} }

type kbBackend struct{}

func (kbBackend) DisplayAt(p Point) (Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	pt := image.Pt(p.X, p.Y)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		if pt.In(b) {
			return kbDisplay{index: i, bounds: b}, nil
		}
	}
	return nil, fmt.Errorf("%w: (%d,%d)", ErrNoDisplay, p.X, p.Y)
}

type kbDisplay struct {
	index  int
	bounds image.Rectangle
}

func (d kbDisplay) Index() int              { return d.index }
func (d kbDisplay) Bounds() image.Rectangle { return d.bounds }

func (d kbDisplay) Capture() (*image.RGBA, error) {
	img, err := screenshot.CaptureDisplay(d.index)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", d.index, err)
	}
	// Re-base display-local pixels onto screen coordinates.
	if img.Rect.Min != d.bounds.Min {
		img.Rect = img.Rect.Sub(img.Rect.Min).Add(d.bounds.Min)
	}
	return img, nil
}

// DisplayBounds returns the bounds of every active display.
func DisplayBounds() ([]image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out, nil
}
