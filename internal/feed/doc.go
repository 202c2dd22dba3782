// Package feed turns user-submitted address text into canonical entries
// and reduces them into sorted, non-overlapping per-family sets.
//
// Bounds are stored as 128-bit integers. IPv4 values occupy the low 32
// bits so both families share the same interval arithmetic.
package feed
