package marks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"markad/internal/logging"
)

// ErrLocked reports that another process holds the marks file lock.
var ErrLocked = errors.New("marks file locked by another process")

// File is the on-disk marks list of one recording. Each line is
//
//	H:MM:SS.FF (frame)* [H:MM:SS.FF] comment
//
// where FF counts frames within the second, "*" flags a start mark, and the
// optional bracketed column is the mark's timestamp when it differs from the
// frame position.
type File struct {
	Path string
	FPS  float64
	// Growing reports whether the recording is still being written. Save
	// skips unforced writes while it returns true.
	Growing func() bool
	logger  *slog.Logger
}

// NewFile returns the marks file at path.
func NewFile(path string, fps float64, logger *slog.Logger) *File {
	return &File{Path: path, FPS: fps, logger: logging.NewComponentLogger(logger, "marks-file")}
}

// DefaultPath returns the conventional marks file location for a recording:
// "marks" inside a recording directory, "<name>.marks" next to a file.
func DefaultPath(recording string) string {
	if info, err := os.Stat(recording); err == nil && info.IsDir() {
		return filepath.Join(recording, "marks")
	}
	return strings.TrimSuffix(recording, filepath.Ext(recording)) + ".marks"
}

// Save rewrites the file from store. It reports whether a write happened.
func (f *File) Save(store *Store, force bool) (bool, error) {
	if !force && f.Growing != nil && f.Growing() {
		f.logger.Debug("recording still growing, marks save deferred", logging.String("path", f.Path))
		return false, nil
	}

	lock := flock.New(f.Path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock marks file: %w", err)
	}
	if !ok {
		return false, ErrLocked
	}
	defer func() {
		_ = lock.Unlock()
	}()

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return false, fmt.Errorf("create temp marks file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	w := bufio.NewWriter(tmp)
	if err := Write(w, store.Marks(), f.FPS); err != nil {
		tmp.Close()
		cleanup()
		return false, err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		cleanup()
		return false, fmt.Errorf("write marks file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return false, fmt.Errorf("close marks file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return false, fmt.Errorf("chmod marks file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		cleanup()
		return false, fmt.Errorf("replace marks file: %w", err)
	}
	f.logger.Debug("marks saved", logging.String("path", f.Path), logging.Int("marks", store.Len()))
	return true, nil
}

// Load parses the file.
func (f *File) Load() ([]*Mark, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open marks file: %w", err)
	}
	defer file.Close()
	return Parse(file, f.FPS)
}

// Write renders marks in marks file format.
func Write(w io.Writer, ms []*Mark, fps float64) error {
	for _, m := range ms {
		star := ""
		if m.IsStart() {
			star = "*"
		}
		comment := m.Type.Label(m.Comment)
		at := positionTime(m.Position, fps)
		line := fmt.Sprintf("%s (%6d)%s", FormatPosition(at, fps), m.Position, star)
		if m.Timestamp > 0 && absDuration(m.Timestamp-at) >= frameDuration(fps) {
			line += " [" + FormatPosition(m.Timestamp, fps) + "]"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", line, comment); err != nil {
			return fmt.Errorf("write marks: %w", err)
		}
	}
	return nil
}

var lineRE = regexp.MustCompile(`^(\d+:\d{2}:\d{2}\.\d+)\s+\(\s*(\d+)\)(\*?)(?:\s+\[(\d+:\d{2}:\d{2}\.\d+)\])?\s*(.*)$`)

// Parse reads marks file lines. Blank lines are skipped. The class is taken
// from the second comment word ("start logo ..."); unknown classes load as
// Assumed.
func Parse(r io.Reader, fps float64) ([]*Mark, error) {
	var out []*Mark
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		match := lineRE.FindStringSubmatch(text)
		if match == nil {
			return nil, fmt.Errorf("marks line %d: unrecognised format %q", lineNo, text)
		}
		pos, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, fmt.Errorf("marks line %d: frame: %w", lineNo, err)
		}
		m := &Mark{Position: pos, Comment: match[5]}
		m.Type.Kind = Stop
		if match[3] == "*" {
			m.Type.Kind = Start
		}
		m.Type.Class = ClassAssumed
		if words := strings.Fields(match[5]); len(words) > 1 {
			if c, ok := ParseClass(words[1]); ok {
				m.Type.Class = c
			}
		}
		if match[4] != "" {
			if m.Timestamp, err = ParsePosition(match[4], fps); err != nil {
				return nil, fmt.Errorf("marks line %d: timestamp: %w", lineNo, err)
			}
		} else {
			m.Timestamp = positionTime(pos, fps)
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read marks: %w", err)
	}
	return out, nil
}

// FormatPosition renders d as H:MM:SS.FF with FF the frame inside the second.
func FormatPosition(d time.Duration, fps float64) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	rest := d - time.Duration(secs)*time.Second
	ff := 0
	if fps > 0 {
		ff = int(math.Round(rest.Seconds() * fps))
		if ff >= int(math.Ceil(fps)) {
			secs++
			ff = 0
		}
	}
	return fmt.Sprintf("%d:%02d:%02d.%02d", secs/3600, secs/60%60, secs%60, ff)
}

// ParsePosition is the inverse of FormatPosition.
func ParsePosition(s string, fps float64) (time.Duration, error) {
	hms, ffStr, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("position %q: missing frame part", s)
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("position %q: expected H:MM:SS", s)
	}
	var total int
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("position %q: %w", s, err)
		}
		total = total*60 + v
	}
	ff, err := strconv.Atoi(ffStr)
	if err != nil {
		return 0, fmt.Errorf("position %q: %w", s, err)
	}
	d := time.Duration(total) * time.Second
	if fps > 0 {
		d += time.Duration(math.Round(float64(ff) / fps * float64(time.Second)))
	}
	return d, nil
}

func positionTime(pos int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(pos) / fps * float64(time.Second)))
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / fps)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
