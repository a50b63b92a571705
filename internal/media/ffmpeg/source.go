package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"markad/internal/config"
	"markad/internal/logging"
	"markad/internal/media/ffprobe"
	"markad/internal/media/frame"
)

// Options selects the binaries and silence detection parameters.
type Options struct {
	FFmpeg             string
	FFprobe            string
	SilenceThresholdDB float64
	SilenceMinSeconds  float64
	Logger             *slog.Logger
}

// OptionsFromConfig maps the [decoder] and [refine] sections.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		FFmpeg:             cfg.Decoder.FFmpegBinary,
		FFprobe:            cfg.Decoder.FFprobeBinary,
		SilenceThresholdDB: cfg.Refine.SilenceThresholdDB,
		SilenceMinSeconds:  cfg.Refine.SilenceMinSeconds,
		Logger:             logger,
	}
}

// Source decodes one recording. It is not safe for concurrent use; use
// Fork for a second reader.
type Source struct {
	opts  Options
	path  string
	info  frame.StreamInfo
	index frame.ConstantRate
	probe streamIndex
	start float64

	logger *slog.Logger
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *tailBuffer

	next    int
	last    int
	pending *frame.Frame
}

// Open probes path and returns a source positioned at frame 0.
func Open(ctx context.Context, path string, opts Options) (*Source, error) {
	logger := logging.NewComponentLogger(opts.Logger, "ffmpeg")
	result, err := ffprobe.Inspect(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, err
	}
	video, ok := result.Video()
	if !ok {
		return nil, fmt.Errorf("probe %s: no video stream", path)
	}
	fps := video.FrameRate()
	if fps <= 0 {
		return nil, fmt.Errorf("probe %s: frame rate %q unusable", path, video.RFrameRate)
	}
	info := frame.StreamInfo{
		FrameRate: fps,
		Width:     video.Width,
		Height:    video.Height,
		Codec:     video.CodecName,
		Frames:    video.FrameCount(),
	}
	if d := result.DurationSeconds(); info.Frames == 0 && d > 0 {
		info.Frames = int(d * fps)
	}

	keyFrames, err := ffprobe.KeyFrames(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, err
	}
	var changes []ffprobe.ChannelChange
	if result.HasAudio() {
		if changes, err = ffprobe.AudioChannels(ctx, opts.FFprobe, path); err != nil {
			return nil, err
		}
	}
	start := result.StartSeconds()
	s := &Source{
		opts:   opts,
		path:   path,
		info:   info,
		index:  frame.ConstantRate{FPS: fps},
		probe:  buildIndex(keyFrames, changes, start, fps),
		start:  start,
		logger: logger,
		last:   -1,
	}
	logger.Info("recording probed",
		logging.String("codec", info.Codec),
		logging.Float64("fps", fps),
		logging.Int("frames", info.Frames),
		logging.Int("key_frames", len(s.probe.keys)),
		logging.Int("channel_changes", len(s.probe.channels)),
	)
	return s, nil
}

// Fork returns an independent reader over the same probed recording.
func (s *Source) Fork() *Source {
	return &Source{
		opts:   s.opts,
		path:   s.path,
		info:   s.info,
		index:  s.index,
		probe:  s.probe,
		start:  s.start,
		logger: s.logger,
		last:   -1,
	}
}

func (s *Source) Info() frame.StreamInfo { return s.info }

// FrameNumber returns the number of the last video frame read.
func (s *Source) FrameNumber() int { return s.last }

// Index returns the frame/time mapping of the recording.
func (s *Source) Index() frame.Index { return s.index }

// decodeArgs builds the ffmpeg command line decoding from frame n.
func (s *Source) decodeArgs(n int) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if n > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(n)/s.info.FrameRate, 'f', 6, 64))
	}
	return append(args,
		"-i", s.path,
		"-map", "0:v:0", "-an", "-sn",
		"-fps_mode", "passthrough",
		"-f", "rawvideo", "-pix_fmt", "yuv420p",
		"pipe:1",
	)
}

func (s *Source) startDecoder(ctx context.Context, n int) error {
	binary := strings.TrimSpace(s.opts.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, s.decodeArgs(n)...) //nolint:gosec
	s.stderr = &tailBuffer{limit: 4096}
	cmd.Stderr = s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	s.cmd = cmd
	s.stdout = bufio.NewReaderSize(stdout, frameSize(s.info.Width, s.info.Height))
	s.next = n
	s.pending = nil
	s.logger.Debug("decoder started", logging.Frame(n))
	return nil
}

func (s *Source) ReadFrame(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending != nil {
		f := s.pending
		s.pending = nil
		return f, nil
	}
	if s.cmd == nil {
		if err := s.startDecoder(ctx, 0); err != nil {
			return nil, err
		}
	}
	planes, err := readPicture(s.stdout, s.info.Width, s.info.Height)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if werr := s.stop(); werr != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("ffmpeg decode: %w: %s", werr, s.stderr.String())
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read picture: %w", err)
	}
	n := s.next
	s.next++
	s.last = n
	if c := s.probe.channelCount(n); c > 0 {
		s.pending = &frame.Frame{Number: n, Kind: frame.KindAudio, Channels: c}
	}
	return &frame.Frame{
		Number: n,
		Kind:   frame.KindVideo,
		Key:    s.probe.keys[n],
		Planes: planes,
		Aspect: s.probe.aspect(n),
	}, nil
}

// Seek restarts the decoder at frame n.
func (s *Source) Seek(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n < 0 || (s.info.Frames > 0 && n >= s.info.Frames) {
		return fmt.Errorf("%w: frame %d outside [0,%d)", frame.ErrSeek, n, s.info.Frames)
	}
	if err := s.Close(); err != nil {
		s.logger.Debug("decoder stopped with error", logging.Error(err))
	}
	s.last = n - 1
	return s.startDecoder(ctx, n)
}

// Close stops a running decoder.
func (s *Source) Close() error {
	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	s.cmd = nil
	s.pending = nil
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on purpose.
		return nil
	}
	return err
}

// stop waits for a decoder that reached the end of its output.
func (s *Source) stop() error {
	if s.cmd == nil {
		return nil
	}
	err := s.cmd.Wait()
	s.cmd = nil
	return err
}

func frameSize(w, h int) int {
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

// readPicture reads one yuv420p picture into freshly allocated planes.
func readPicture(r io.Reader, w, h int) ([]frame.Plane, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("picture size %dx%d unusable", w, h)
	}
	buf := make([]byte, frameSize(w, h))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	cw, ch := (w+1)/2, (h+1)/2
	luma := w * h
	return []frame.Plane{
		{Data: buf[:luma], Stride: w, Width: w, Height: h},
		{Data: buf[luma : luma+cw*ch], Stride: cw, Width: cw, Height: ch},
		{Data: buf[luma+cw*ch:], Stride: cw, Width: cw, Height: ch},
	}, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	return strings.TrimSpace(string(b.data))
}

var (
	_ frame.Source        = (*Source)(nil)
	_ frame.SilenceFinder = (*Source)(nil)
)
