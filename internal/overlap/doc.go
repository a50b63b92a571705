// Package overlap finds content repeated on both sides of an advertising
// break. Broadcasters often replay the last seconds before the break after
// it; matching luma histograms of the two windows locates the repeated run so
// the cut can drop one copy.
package overlap
