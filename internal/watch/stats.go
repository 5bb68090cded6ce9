package watch

import "math"

const minSamplesForZ = 3

// runningStats tracks the mean and variance of busy-spot revenue with
// Welford's online algorithm.
type runningStats struct {
	count int
	mean  float64
	m2    float64
}

func (s *runningStats) Update(x float64) {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

// Sigma is the sample standard deviation, zero with fewer than two samples.
func (s *runningStats) Sigma() float64 {
	if s.count < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.count-1))
}

// ZScore of x against the samples seen so far. Zero until enough history
// exists or when every sample was identical.
func (s *runningStats) ZScore(x float64) float64 {
	if s.count < minSamplesForZ {
		return 0
	}
	sigma := s.Sigma()
	if sigma == 0 {
		return 0
	}
	return (x - s.mean) / sigma
}
