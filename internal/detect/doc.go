// Package detect turns decoded frames into boundary events.
//
// Every detector implements Detector: it inspects one frame at a time, keeps
// its own hysteresis state, and reports at most one Event per frame. Events
// carry the frame number at which the transition happened, which may lie
// before the frame that confirmed it. Detectors never share state; a LogoMask
// is read-only and may be shared.
package detect
