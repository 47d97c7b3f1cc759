// Package retry runs bounded exponential-backoff loops shared by the mailbox
// fetchers, synthesis engines, and uploaders.
package retry
