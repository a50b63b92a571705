// Package boundary selects the start and stop marks of a recording.
//
// Each boundary runs SearchStrongType → ValidateCandidate → AcceptOrFallback:
// classes are searched from the most trusted (audio channel) down to the logo,
// each candidate passes the rules of its class or is discarded, and without a
// surviving candidate a black screen or the assumed position from the timer
// stands in. Accepted boundaries are confirmed so alternation repair keeps
// them, and selecting again on an accepted set changes nothing.
package boundary
