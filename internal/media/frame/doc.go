// Package frame defines the decoded-frame model shared by the detectors and
// passes, together with the decoder, index, and silence interfaces the
// pipeline consumes.
//
// The package has no knowledge of containers or codecs. internal/media/ffmpeg
// implements Source and SilenceFinder on top of the ffmpeg binary;
// MemorySource serves scripted frames for tests and synthetic runs.
package frame
