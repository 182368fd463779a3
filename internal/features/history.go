package features

import (
	"time"
)

// History accumulates the ordered prior transactions of one cardholder
// within a batch. It keeps running sums so mean and variance are O(1) and
// a timestamp list for the rolling velocity window.
type History struct {
	times  []time.Time // parseable timestamps only, in observation order
	count  int         // all observed records, with or without timestamps
	sum    float64
	sumSq  float64
	last   time.Time
	hasTim bool
}

// NewHistory returns an empty cardholder history.
func NewHistory() *History {
	return &History{}
}

// Observe records one transaction. ok reports whether ts is a real
// timestamp; records without one still count toward frequency and amount
// aggregates but not toward the velocity window.
func (h *History) Observe(ts time.Time, ok bool, amount float64) {
	h.count++
	h.sum += amount
	h.sumSq += amount * amount
	if ok {
		h.times = append(h.times, ts)
		h.last = ts
		h.hasTim = true
	}
}

// Count returns the number of observed records.
func (h *History) Count() int {
	return h.count
}

// HoursSinceLast returns the hours elapsed between the most recent observed
// timestamp and ts, or 0 when there is no prior timestamp.
func (h *History) HoursSinceLast(ts time.Time) float64 {
	if !h.hasTim {
		return 0
	}
	d := ts.Sub(h.last)
	if d < 0 {
		d = 0
	}
	return d.Hours()
}

// CountWithin returns how many observed records fall at or after from.
// The timestamp list is in ascending order (callers feed records sorted by
// time), so scan backwards from the tail.
func (h *History) CountWithin(from time.Time) int {
	n := 0
	for i := len(h.times) - 1; i >= 0; i-- {
		if h.times[i].Before(from) {
			break
		}
		n++
	}
	return n
}

// MeanWith returns the running average amount including a current amount.
func (h *History) MeanWith(amount float64) float64 {
	return (h.sum + amount) / float64(h.count+1)
}

// VarianceWith returns the running sample variance of amounts including a
// current amount. Returns 0 with fewer than two records.
func (h *History) VarianceWith(amount float64) float64 {
	n := float64(h.count + 1)
	if n < 2 {
		return 0
	}
	sum := h.sum + amount
	sumSq := h.sumSq + amount*amount
	mean := sum / n
	v := (sumSq - n*mean*mean) / (n - 1)
	if v < 0 {
		v = 0
	}
	return v
}
