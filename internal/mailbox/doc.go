// Package mailbox retrieves newsletter messages from the configured mail
// provider.
//
// Every backend implements Fetcher: given one registered sender and a
// receipt window it returns the raw RFC 5322 messages received in
// [Start, End), ordered by receipt time. Backends are read-only. Gmail uses
// the readonly scope, IMAP fetches with BODY.PEEK, and POP3 never deletes.
//
// Per-message retrieval failures are retried and then reported in
// Result.Failures rather than failing the whole sender. Authentication
// failures are marked with services.ErrAuthentication so the pipeline can
// abort the run.
package mailbox
