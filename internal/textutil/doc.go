// Package textutil turns titles and message ids into names that are safe on
// a filesystem or in an object-store key.
package textutil
