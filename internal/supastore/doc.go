// Package supastore wraps the Supabase SDK with the handful of table and
// storage calls digestcast needs, so callers depend on narrow interfaces.
package supastore
