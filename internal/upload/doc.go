// Package upload delivers compiled audiobooks to the digest backend.
//
// Two backends exist: the web API that receives a multipart POST of the MP3
// plus JSON metadata, and a Supabase project where the file lands in a
// storage bucket and the metadata becomes a table row. Either way a
// successful Upload returns a Receipt and anything else leaves the run
// uncommitted.
package upload
