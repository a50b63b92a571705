// Package main hosts the markad CLI entrypoint and command graph.
//
// The Cobra command tree wires the analysis pipeline to the ffmpeg decoder,
// the run history database, and the optional metrics endpoint. It also
// exposes the supporting tools: showing a marks file, browsing run history,
// extracting a channel logo, scaffolding configuration, and checking the
// environment.
//
// Keep this package lean: analysis behaviour belongs in the internal
// packages; commands only resolve configuration, open resources, and render
// results.
package main
