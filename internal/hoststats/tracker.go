package hoststats

import (
	"math"
	"sync"
)

// Reading is a tracker summary. Valid is false until the first sample.
type Reading struct {
	Valid   bool    `json:"valid"`
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Avg     float64 `json:"avg"`
	Samples int     `json:"samples"`
}

// Tracker accumulates temperature samples.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	r   Reading
	sum float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record adds one sample and returns the updated summary.
func (t *Tracker) Record(temp float64) Reading {
	temp = round1(temp)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.r.Valid {
		t.seed(temp)
		return t.r
	}

	t.r.Current = temp
	t.r.Max = math.Max(t.r.Max, temp)
	t.r.Min = math.Min(t.r.Min, temp)
	t.r.Samples++
	t.sum += temp
	t.r.Avg = round1(t.sum / float64(t.r.Samples))
	return t.r
}

// Reset starts a new series with temp as its only sample.
func (t *Tracker) Reset(temp float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seed(round1(temp))
}

func (t *Tracker) seed(temp float64) {
	t.r = Reading{Valid: true, Current: temp, Max: temp, Min: temp, Avg: temp, Samples: 1}
	t.sum = temp
}

// Reading returns the current summary.
func (t *Tracker) Reading() Reading {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
