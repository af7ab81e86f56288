// Package seqnum implements RFC 1323 serial number arithmetic for the
// 32-bit TCP sequence space, so that comparisons remain correct across a
// wraparound instead of only within a single non-wrapping window.
package seqnum

// Value is a TCP sequence or acknowledgment number.
type Value uint32

// Size is a segment length or window size, added to or subtracted from a
// Value.
type Size uint32

// Add returns v+delta in modulo-2^32 arithmetic.
func (v Value) Add(delta Size) Value {
	return v + Value(delta)
}

// Sub returns v-delta in modulo-2^32 arithmetic.
func (v Value) Sub(delta Size) Value {
	return v - Value(delta)
}

// Size returns the number of sequence numbers between v (inclusive) and w
// (exclusive), assuming w was reached by advancing from v.
func (v Value) Size(w Value) Size {
	return Size(w - v)
}

// LessThan reports whether v occurs before w in the sequence space.
func LessThan(v, w Value) bool {
	return int32(v-w) < 0
}

// LessThanEq reports whether v occurs before or at w in the sequence space.
func LessThanEq(v, w Value) bool {
	return v == w || LessThan(v, w)
}

// InRange reports whether v lies in [lo, hi], inclusive on both ends, in
// modular sequence order.
func InRange(v, lo, hi Value) bool {
	return LessThanEq(lo, v) && LessThanEq(v, hi)
}
