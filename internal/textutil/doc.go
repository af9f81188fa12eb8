// Package textutil normalizes user-supplied names into filesystem-safe path
// segments.
package textutil
