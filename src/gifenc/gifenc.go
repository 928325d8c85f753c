package gifenc

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultDelay = 100 * time.Millisecond
	DefaultExt   = ".png"
	// maxSide is the largest width or height a GIF logical screen can hold.
	maxSide = 1<<16 - 1
)

// ErrEmptyFrameSet is returned when the frame directory holds no frames.
var ErrEmptyFrameSet = errors.New("no frames to assemble")

// DimensionMismatchError identifies a frame whose size differs from the first.
// Index is the 1-based position in the sorted frame list.
type DimensionMismatchError struct {
	Index int
	Path  string
	Want  image.Point
	Got   image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("frame %d (%s) is %dx%d, expected %dx%d",
		e.Index, filepath.Base(e.Path), e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// EncodeError wraps decode, encode and write failures.
type EncodeError struct {
	Op   string
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("gif %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gif %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Options tunes assembly. Zero values use the defaults.
type Options struct {
	// Delay is the display time of every frame.
	Delay time.Duration
	// Ext selects which files in the directory are frames.
	Ext string
}

// Artifact describes a written animated image.
type Artifact struct {
	Path       string
	Width      int
	Height     int
	FrameCount int
}

// ListFrames returns the frame files of dir sorted by name.
func ListFrames(dir, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExt
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Assemble encodes every frame in dir, in name order, into an infinitely
// looping GIF at out. The previous file at out is replaced only on success.
func Assemble(dir, out string, opts Options) (Artifact, error) {
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	paths, err := ListFrames(dir, opts.Ext)
	if err != nil {
		return Artifact{}, &EncodeError{Op: "list", Path: dir, Err: err}
	}
	if len(paths) == 0 {
		return Artifact{}, fmt.Errorf("%w in %s", ErrEmptyFrameSet, dir)
	}

	var size image.Point
	anim := &gif.GIF{LoopCount: 0}
	for i, p := range paths {
		img, err := imaging.Open(p)
		if err != nil {
			return Artifact{}, &EncodeError{Op: "decode", Path: p, Err: err}
		}
		got := img.Bounds().Size()
		if i == 0 {
			size = got
			if size.X > maxSide || size.Y > maxSide {
				return Artifact{}, &EncodeError{Op: "encode", Path: p, Err: fmt.Errorf("frame %dx%d exceeds GIF limits", size.X, size.Y)}
			}
		} else if got != size {
			return Artifact{}, &DimensionMismatchError{Index: i + 1, Path: p, Want: size, Got: got}
		}

		anim.Image = append(anim.Image, quantize(img))
		anim.Delay = append(anim.Delay, int(delay/(10*time.Millisecond)))
	}

	if err := writeAtomic(out, anim); err != nil {
		return Artifact{}, err
	}
	log.Printf("GIF: %d frames (%dx%d) saved to %s", len(anim.Image), size.X, size.Y, out)
	return Artifact{Path: out, Width: size.X, Height: size.Y, FrameCount: len(anim.Image)}, nil
}

func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	xdraw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

func writeAtomic(out string, anim *gif.GIF) error {
	dir := filepath.Dir(out)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &EncodeError{Op: "write", Path: out, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".gifenc-*.gif")
	if err != nil {
		return &EncodeError{Op: "write", Path: out, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := gif.EncodeAll(tmp, anim); err != nil {
		_ = tmp.Close()
		return &EncodeError{Op: "encode", Path: out, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &EncodeError{Op: "write", Path: out, Err: err}
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return &EncodeError{Op: "write", Path: out, Err: err}
	}
	return nil
}

// Inspect reads back the metadata of an existing GIF.
func Inspect(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		return Artifact{}, &EncodeError{Op: "decode", Path: path, Err: err}
	}
	return Artifact{Path: path, Width: g.Config.Width, Height: g.Config.Height, FrameCount: len(g.Image)}, nil
}
