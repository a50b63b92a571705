// Package pipeline runs the refinement passes over one recording.
//
// Pass 1 decodes the recording once, feeds every frame through the
// Aggregator and selects the start and stop boundaries. Pass 2 corrects
// stop/start pairs around advertising with the overlap matcher. Pass 3 snaps
// weak marks to nearby black screens, silence or scene cuts and extends the
// final stop over closing credits. Passes 2 and 3 seek the source, may fail
// independently and never invalidate the marks saved by an earlier pass.
package pipeline
