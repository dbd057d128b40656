package batch

import (
	"math"
	"time"

	"github.com/DMW2151/mta-buses/internal/models"
)

// RuntimeStats holds running statistics of trip runtimes, updated with
// Welford's online algorithm.
type RuntimeStats struct {
	Count int
	Mean  float64 // seconds
	M2    float64
	Max   int64 // seconds
}

// Update adds one runtime in seconds.
func (s *RuntimeStats) Update(seconds int64) {
	s.Count++
	v := float64(seconds)
	delta := v - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (v - s.Mean)
	if seconds > s.Max {
		s.Max = seconds
	}
}

// StdDev is the population standard deviation, 0 below 2 samples.
func (s *RuntimeStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(s.Count))
}

// SummaryStats folds a day's summaries into runtime statistics.
func SummaryStats(summaries []models.DailyTripSummary) RuntimeStats {
	var s RuntimeStats
	for _, sum := range summaries {
		s.Update(int64(sum.Runtime() / time.Second))
	}
	return s
}
