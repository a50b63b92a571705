// Package marks owns the ordered mark sequence of a recording.
//
// A Store keeps marks sorted by frame position. The primary store also keeps
// the sequence alternating between start and stop marks: after every mutation
// the weaker of two consecutive same-kind marks is removed, except that a
// Confirmed mark is never removed. Side lists (black screens, scene changes)
// are plain ordered stores without that repair.
//
// Traversal is position based: Next(m.Position, ...) remains valid after m
// has been deleted, which is what the passes rely on when they prune while
// iterating.
//
// File reads and writes the marks file consumed by cutting tools.
package marks
