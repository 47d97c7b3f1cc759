// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, message IDs, senders, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper, with Classify deciding
//     whether a failure abandons a message, ends the run, or is fatal.
//   - IsRetryable, the shared predicate behind fetch, synthesis, and upload
//     retry loops.
package services
