package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

const (
	defaultFileName = "screen_gif_debug.log"
	maxSizeBytes    = 10 * 1024 * 1024 // 10 MB
	maxArchives     = 3
)

// Setup enables file logging with size-based rotation (10MB, max 3 archives).
// When disabled, logs are discarded so stdout stays a clean message stream.
func Setup(enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		return
	}
	w, err := OpenRotating(defaultFileName, maxSizeBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	log.SetOutput(w)
}

// ToStderr routes logs to stderr (CLI verbose mode).
func ToStderr() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stderr)
}

// RotatingWriter appends to a file and rotates it once it would exceed max bytes.
type RotatingWriter struct {
	name string
	max  int64
	f    *os.File
}

// OpenRotating opens name for appending, rotating first if it is already too big.
func OpenRotating(name string, max int64) (*RotatingWriter, error) {
	w := &RotatingWriter{name: name, max: max}
	w.rotateIfNeeded()
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.max {
		_ = w.f.Close()
		w.rotate()
		nf, err := os.OpenFile(w.name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

// Close closes the current file.
func (w *RotatingWriter) Close() error { return w.f.Close() }

func (w *RotatingWriter) rotateIfNeeded() {
	if st, err := os.Stat(w.name); err == nil && st.Size() > w.max {
		w.rotate()
	}
}

// rotate shifts archives: .1 -> .2 -> .3, oldest discarded, current -> .1
func (w *RotatingWriter) rotate() {
	_ = os.Remove(w.archiveName(maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	_ = os.Rename(w.name, w.archiveName(1))
}

func (w *RotatingWriter) archiveName(n int) string {
	return filepath.Join(filepath.Dir(w.name), fmt.Sprintf("%s.%d", filepath.Base(w.name), n))
}
