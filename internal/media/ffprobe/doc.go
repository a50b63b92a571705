// Package ffprobe provides a typed wrapper around ffprobe output.
//
// This package has no markad-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - KeyFrame, ChannelChange: per-frame scans used to index a recording
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - KeyFrames: lists the key frames of the first video stream
//   - AudioChannels: lists channel count changes of the first audio stream
package ffprobe
