package hammer

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds in microseconds.
const (
	histogramMin     = 1
	histogramMax     = 60_000_000
	histogramSigFigs = 3
)

// TimeStats tracks min/max/sum/count over a series of durations. The
// zero-count state uses Min = MaxInt64 so that merging it into real
// measurements is a no-op.
type TimeStats struct {
	Min   time.Duration
	Max   time.Duration
	Sum   time.Duration
	Count uint64
}

// NewTimeStats returns the merge identity element.
func NewTimeStats() TimeStats {
	return TimeStats{Min: time.Duration(math.MaxInt64)}
}

// Record folds one measurement in.
func (s *TimeStats) Record(d time.Duration) {
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Sum += d
	s.Count++
}

// Merge combines another series into this one. Merge is commutative
// and associative, so per-worker series can be folded in any order.
func (s *TimeStats) Merge(other TimeStats) {
	if other.Min < s.Min {
		s.Min = other.Min
	}
	if other.Max > s.Max {
		s.Max = other.Max
	}
	s.Sum += other.Sum
	s.Count += other.Count
}

// MinMS returns the minimum in fractional milliseconds.
func (s TimeStats) MinMS() float64 { return durationMS(s.Min) }

// MaxMS returns the maximum in fractional milliseconds.
func (s TimeStats) MaxMS() float64 { return durationMS(s.Max) }

// AvgMS returns the mean in fractional milliseconds. It must only be
// called when Count > 0.
func (s TimeStats) AvgMS() float64 {
	return durationMS(s.Sum) / float64(s.Count)
}

func durationMS(d time.Duration) float64 {
	return d.Seconds() * 1000
}

// HammerStats pairs the two latency series of an endpoint: time to
// first byte (Response) and time to full body (Total). Histograms back
// the verbose percentile report.
type HammerStats struct {
	Response TimeStats
	Total    TimeStats

	responseHist *hdrhistogram.Histogram
	totalHist    *hdrhistogram.Histogram
}

// NewHammerStats creates an empty pair of series.
func NewHammerStats() *HammerStats {
	return &HammerStats{
		Response:     NewTimeStats(),
		Total:        NewTimeStats(),
		responseHist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		totalHist:    hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// Record folds one successful request in.
func (h *HammerStats) Record(response, total time.Duration) {
	h.Response.Record(response)
	h.Total.Record(total)
	_ = h.responseHist.RecordValue(clampMicros(response))
	_ = h.totalHist.RecordValue(clampMicros(total))
}

// Merge combines another worker's series into this one.
func (h *HammerStats) Merge(other *HammerStats) {
	h.Response.Merge(other.Response)
	h.Total.Merge(other.Total)
	h.responseHist.Merge(other.responseHist)
	h.totalHist.Merge(other.totalHist)
}

// Done returns the number of completed requests.
func (h *HammerStats) Done() uint64 {
	return h.Total.Count
}

// Percentiles is the verbose latency summary for one series.
type Percentiles struct {
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// ResponsePercentiles summarises the time-to-first-byte series.
func (h *HammerStats) ResponsePercentiles() Percentiles {
	return histogramPercentiles(h.responseHist)
}

// TotalPercentiles summarises the full-body series.
func (h *HammerStats) TotalPercentiles() Percentiles {
	return histogramPercentiles(h.totalHist)
}

func histogramPercentiles(hist *hdrhistogram.Histogram) Percentiles {
	return Percentiles{
		P50: time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P95: time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histogramMin {
		return histogramMin
	}
	if us > histogramMax {
		return histogramMax
	}
	return us
}
