// Package ffmpeg implements frame.Source and frame.SilenceFinder on top of
// the ffmpeg and ffprobe binaries.
//
// Open probes the recording once: stream parameters, the key frame index with
// per key frame aspect ratio, and the audio channel layout timeline. Frames
// are then decoded by an ffmpeg subprocess writing raw yuv420p pictures to a
// pipe; audio is not decoded again, the channel count of every frame comes
// from the probed timeline. Seeking restarts the subprocess.
package ffmpeg
