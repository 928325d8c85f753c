package cursor

import (
	"errors"

	"github.com/go-vgo/robotgo"

	"screen-gif-capture/src/screenshot"
)

// ErrUnavailable is returned when the OS does not report a cursor position.
var ErrUnavailable = errors.New("cursor position unavailable")

// Locator queries the current cursor position.
type Locator interface {
	Location() (screenshot.Point, error)
}

// New returns the OS-backed locator.
func New() Locator { return robotLocator{} }

type robotLocator struct{}

func (robotLocator) Location() (screenshot.Point, error) {
	return fromRobot(robotgo.Location())
}

// fromRobot maps robotgo's -1,-1 failure sentinel to ErrUnavailable. Other
// negative positions are real: monitors left of or above the primary.
func fromRobot(x, y int) (screenshot.Point, error) {
	if x == -1 && y == -1 {
		return screenshot.Point{}, ErrUnavailable
	}
	return screenshot.Point{X: x, Y: y}, nil
}

// Func adapts a function to the Locator interface.
type Func func() (screenshot.Point, error)

func (f Func) Location() (screenshot.Point, error) { return f() }

// Resolve returns the locator's position, or fallback when the query fails.
func Resolve(l Locator, fallback screenshot.Point) screenshot.Point {
	if l == nil {
		return fallback
	}
	p, err := l.Location()
	if err != nil {
		return fallback
	}
	return p
}
