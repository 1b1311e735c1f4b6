package util

// Ring keeps the last Cap values added, oldest first. Not safe for
// concurrent use.
type Ring[T any] struct {
  buf  []T
  next int
  n    int
}

func NewRing[T any](capacity int) *Ring[T] {
  if capacity < 0 {
    capacity = 0
  }
  return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) Len() int { return r.n }

func (r *Ring[T]) Add(v T) {
  if len(r.buf) == 0 {
    return
  }
  r.buf[r.next] = v
  r.next = (r.next + 1) % len(r.buf)
  if r.n < len(r.buf) {
    r.n++
  }
}

// Values returns a copy, oldest first.
func (r *Ring[T]) Values() []T {
  out := make([]T, 0, r.n)
  start := (r.next - r.n + len(r.buf)) % max(len(r.buf), 1)
  for i := 0; i < r.n; i++ {
    out = append(out, r.buf[(start+i)%len(r.buf)])
  }
  return out
}

// Last returns the newest value.
func (r *Ring[T]) Last() (T, bool) {
  var zero T
  if r.n == 0 {
    return zero, false
  }
  return r.buf[(r.next-1+len(r.buf))%len(r.buf)], true
}
