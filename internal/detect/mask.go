package detect

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"markad/internal/media/frame"
)

// ErrNoMask reports that no logo mask exists for a channel and aspect.
var ErrNoMask = errors.New("no logo mask")

// Corner names the frame corner a logo sits in.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// Corners lists all corners in index order.
var Corners = [4]Corner{TopLeft, TopRight, BottomLeft, BottomRight}

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "corner(" + strconv.Itoa(int(c)) + ")"
	}
}

// CornerRect returns the w*h rectangle anchored in corner c of a plane of
// pw*ph pixels.
func CornerRect(c Corner, pw, ph, w, h int) image.Rectangle {
	x, y := 0, 0
	if c == TopRight || c == BottomRight {
		x = pw - w
	}
	if c == BottomLeft || c == BottomRight {
		y = ph - h
	}
	return image.Rect(x, y, x+w, y+h)
}

// MaskPlane is one plane of a logo mask: 0 marks logo edge pixels, 255
// background.
type MaskPlane struct {
	Data   []byte
	Width  int
	Height int
}

// Pixels counts logo edge pixels.
func (p MaskPlane) Pixels() int {
	return bytes.Count(p.Data, []byte{edgePixel})
}

// LogoMask is the edge template of a channel logo. X and Y locate the luma
// plane of the mask inside the frame; chroma planes (optional) sit at half
// those coordinates.
type LogoMask struct {
	Corner Corner
	Aspect frame.Ratio
	X, Y   int
	Planes [3]MaskPlane
}

// Rect returns where plane p of the mask lies in the corresponding frame plane.
func (m *LogoMask) Rect(p int) image.Rectangle {
	x, y := m.X, m.Y
	if p > 0 {
		x, y = x/2, y/2
	}
	pl := m.Planes[p]
	return image.Rect(x, y, x+pl.Width, y+pl.Height)
}

// ColorInsensitive returns a copy whose chroma planes are the luma plane
// down-scaled by two, so a logo that changes colour still matches in chroma.
func (m *LogoMask) ColorInsensitive() *LogoMask {
	out := *m
	luma := m.Planes[0]
	w, h := luma.Width/2, luma.Height/2
	down := MaskPlane{Data: make([]byte, w*h), Width: w, Height: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(backgroundPixel)
			for dy := 0; dy < 2 && v != edgePixel; dy++ {
				for dx := 0; dx < 2; dx++ {
					if luma.Data[(2*y+dy)*luma.Width+2*x+dx] == edgePixel {
						v = edgePixel
						break
					}
				}
			}
			down.Data[y*w+x] = v
		}
	}
	out.Planes[1] = down
	out.Planes[2] = MaskPlane{Data: append([]byte(nil), down.Data...), Width: w, Height: h}
	return &out
}

// MaskFileName returns the luma mask file name for a channel, aspect, and
// corner: "<channel>-A16_9-P<corner>.pgm". Chroma planes append "-1"/"-2".
func MaskFileName(channel string, aspect frame.Ratio, corner Corner, plane int) string {
	name := fmt.Sprintf("%s-A%d_%d-P%d", channelFileName(channel), aspect.Num, aspect.Den, int(corner))
	if plane > 0 {
		name += "-" + strconv.Itoa(plane)
	}
	return name + ".pgm"
}

func channelFileName(channel string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(channel))
}

var maskNameRE = regexp.MustCompile(`-P([0-3])\.pgm$`)

// LoadMask finds and reads the mask for channel and aspect in dir.
func LoadMask(dir, channel string, aspect frame.Ratio) (*LogoMask, error) {
	pattern := filepath.Join(dir, fmt.Sprintf("%s-A%d_%d-P?.pgm", channelFileName(channel), aspect.Num, aspect.Den))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("find logo mask: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w for %q at %s", ErrNoMask, channel, aspect)
	}
	name := matches[0]
	sub := maskNameRE.FindStringSubmatch(name)
	if sub == nil {
		return nil, fmt.Errorf("%w: unexpected mask name %s", ErrNoMask, name)
	}
	corner, _ := strconv.Atoi(sub[1])

	m := &LogoMask{Corner: Corner(corner), Aspect: aspect}
	luma, meta, err := readMaskFile(name)
	if err != nil {
		return nil, err
	}
	m.Planes[0] = luma
	m.X, m.Y = meta.x, meta.y
	for p := 1; p <= 2; p++ {
		chroma, _, err := readMaskFile(strings.TrimSuffix(name, ".pgm") + "-" + strconv.Itoa(p) + ".pgm")
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		m.Planes[p] = chroma
	}
	return m, nil
}

// Save writes every non-empty plane of the mask into dir.
func (m *LogoMask) Save(dir, channel string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logo directory: %w", err)
	}
	for p, plane := range m.Planes {
		if len(plane.Data) == 0 {
			continue
		}
		path := filepath.Join(dir, MaskFileName(channel, m.Aspect, m.Corner, p))
		comment := fmt.Sprintf("markad corner=%d x=%d y=%d", int(m.Corner), m.X, m.Y)
		var buf bytes.Buffer
		if err := WritePGM(&buf, plane.Width, plane.Height, plane.Data, comment); err != nil {
			return err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write logo mask: %w", err)
		}
	}
	return nil
}

type maskMeta struct {
	x, y int
}

func readMaskFile(path string) (MaskPlane, maskMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return MaskPlane{}, maskMeta{}, fmt.Errorf("open logo mask: %w", err)
	}
	defer f.Close()
	w, h, data, comments, err := ReadPGM(f)
	if err != nil {
		return MaskPlane{}, maskMeta{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	var meta maskMeta
	for _, c := range comments {
		for _, field := range strings.Fields(c) {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			switch key {
			case "x":
				meta.x = n
			case "y":
				meta.y = n
			}
		}
	}
	return MaskPlane{Data: data, Width: w, Height: h}, meta, nil
}

// ReadPGM decodes a binary (P5) 8-bit greymap and returns its header comments.
func ReadPGM(r io.Reader) (width, height int, data []byte, comments []string, err error) {
	br := bufio.NewReader(r)
	var fields []int
	magic, err := pgmToken(br, &comments)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	if magic != "P5" {
		return 0, 0, nil, nil, fmt.Errorf("pgm: unsupported magic %q", magic)
	}
	for len(fields) < 3 {
		tok, err := pgmToken(br, &comments)
		if err != nil {
			return 0, 0, nil, nil, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n <= 0 {
			return 0, 0, nil, nil, fmt.Errorf("pgm: invalid header value %q", tok)
		}
		fields = append(fields, n)
	}
	width, height = fields[0], fields[1]
	if fields[2] > 255 {
		return 0, 0, nil, nil, fmt.Errorf("pgm: 16-bit maxval %d not supported", fields[2])
	}
	data = make([]byte, width*height)
	if _, err := io.ReadFull(br, data); err != nil {
		return 0, 0, nil, nil, fmt.Errorf("pgm: read pixels: %w", err)
	}
	return width, height, data, comments, nil
}

// pgmToken reads one whitespace-delimited header token, collecting comment
// lines on the way. The single whitespace byte after the token is consumed,
// so after maxval the reader sits on the first pixel.
func pgmToken(br *bufio.Reader, comments *[]string) (string, error) {
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", fmt.Errorf("pgm: header: %w", err)
		}
		switch {
		case b == '#' && len(tok) == 0:
			line, err := br.ReadString('\n')
			if err != nil {
				return "", fmt.Errorf("pgm: comment: %w", err)
			}
			*comments = append(*comments, strings.TrimSpace(line))
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

// WritePGM encodes a binary greymap with an optional comment line.
func WritePGM(w io.Writer, width, height int, data []byte, comment string) error {
	if len(data) != width*height {
		return fmt.Errorf("pgm: %d bytes for %dx%d", len(data), width, height)
	}
	header := "P5\n"
	if comment != "" {
		header += "# " + comment + "\n"
	}
	header += fmt.Sprintf("%d %d\n255\n", width, height)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("pgm: write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pgm: write pixels: %w", err)
	}
	return nil
}
