// Package services defines shared utilities consumed by the analysis passes and
// the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, recording paths, and pass names for
//     logging and history correlation.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run statuses (failed vs review vs aborted).
//
// Use these helpers when wiring new pass logic so operational behaviour stays
// uniform across the pipeline.
package services
