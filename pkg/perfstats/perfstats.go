// Package perfstats accumulates timings of the stages of frame processing
package perfstats

import "time"

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	if a.Samples == 0 || v < a.Min {
		a.Min = v
	}
	if v > a.Max {
		a.Max = v
	}
	a.Samples++
	a.Total += v
}

// Since adds the time elapsed since start
func (a *TimeAccumulator) Since(start time.Time) {
	a.AddSample(time.Since(start))
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Summary is a snapshot of a TimeAccumulator, in milliseconds
type Summary struct {
	Samples int64   `json:"samples"`
	AvgMS   float64 `json:"avgMS"`
	MinMS   float64 `json:"minMS"`
	MaxMS   float64 `json:"maxMS"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (a *TimeAccumulator) Summary() Summary {
	return Summary{
		Samples: a.Samples,
		AvgMS:   ms(a.Average()),
		MinMS:   ms(a.Min),
		MaxMS:   ms(a.Max),
	}
}
