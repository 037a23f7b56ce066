package idgen

import "sync/atomic"

// Int64 returns values 1,2,3...
// Zero is never generated, and a value is never handed out twice until Reset.
type Int64 struct {
	next atomic.Int64
}

func (u *Int64) Next() int64 {
	return u.next.Add(1)
}

// Peek returns the most recently generated value, or zero
func (u *Int64) Peek() int64 {
	return u.next.Load()
}

// Reset restarts the sequence at 1
func (u *Int64) Reset() {
	u.next.Store(0)
}
