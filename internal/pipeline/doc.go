// Package pipeline runs one digest: resolve the window, fetch every
// registered sender, turn new messages into audio tracks, compile and upload
// the audiobook, then commit the ledger.
//
// Failures are scoped by services.Classify. A message that cannot be
// extracted or synthesized is dropped from the audiobook and left
// unprocessed so a later run retries it. Authentication, configuration, and
// ledger failures abort the run. Nothing is committed unless the upload
// succeeds.
package pipeline
