// Package sources maintains the ordered registry of newsletter senders and
// their spoken display names.
//
// The registry is built from the static [[sources.senders]] list and,
// optionally, a remote list served by the web backend or a Supabase table.
// Registration order decides chapter order in the compiled audiobook.
package sources
