package eventloop

import (
	"math"
	"slices"
)

// quantileEstimator is a streaming quantile estimator, using the P-Square
// algorithm: five markers are maintained per target quantile, giving O(1)
// updates and reads without retaining observations.
//
// Reference:
// Jain, R. and Chlamtac, I. (1985). "The P² Algorithm for Dynamic Calculation
// of Quantiles and Histograms Without Storing Observations". Communications
// of the ACM, 28(10), pp. 1076-1085.
//
// Thread Safety: NOT thread-safe. Caller must ensure synchronization.
type quantileEstimator struct {
	// marker heights
	heights [5]float64
	// actual marker positions
	positions [5]int
	// desired marker positions
	desired [5]float64
	// increments applied to desired, per observation
	increments [5]float64
	// first five observations, sorted once full
	warmup [5]float64
	p      float64
	count  int
}

func newQuantileEstimator(p float64) *quantileEstimator {
	p = math.Max(0, math.Min(1, p))
	return &quantileEstimator{
		p:          p,
		increments: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

// observe adds x to the estimate.
func (e *quantileEstimator) observe(x float64) {
	e.count++

	if e.count <= len(e.warmup) {
		e.warmup[e.count-1] = x
		if e.count == len(e.warmup) {
			slices.Sort(e.warmup[:])
			for i := range e.heights {
				e.heights[i] = e.warmup[i]
				e.positions[i] = i
			}
			e.desired = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
		}
		return
	}

	// locate the cell containing x, extending the extremes if necessary
	var cell int
	switch {
	case x < e.heights[0]:
		e.heights[0] = x
		cell = 0
	case x >= e.heights[4]:
		e.heights[4] = x
		cell = 3
	default:
		for cell = 0; cell < 3; cell++ {
			if x < e.heights[cell+1] {
				break
			}
		}
	}

	for i := cell + 1; i < 5; i++ {
		e.positions[i]++
	}
	for i := range e.desired {
		e.desired[i] += e.increments[i]
	}

	for i := 1; i < 4; i++ {
		delta := e.desired[i] - float64(e.positions[i])
		if (delta >= 1 && e.positions[i+1]-e.positions[i] > 1) ||
			(delta <= -1 && e.positions[i-1]-e.positions[i] < -1) {
			step := 1
			if delta < 0 {
				step = -1
			}
			if h := e.parabolic(i, step); e.heights[i-1] < h && h < e.heights[i+1] {
				e.heights[i] = h
			} else {
				e.heights[i] = e.linear(i, step)
			}
			e.positions[i] += step
		}
	}
}

func (e *quantileEstimator) parabolic(i, step int) float64 {
	d := float64(step)
	n := float64(e.positions[i])
	nPrev := float64(e.positions[i-1])
	nNext := float64(e.positions[i+1])
	return e.heights[i] + d/(nNext-nPrev)*
		((n-nPrev+d)*(e.heights[i+1]-e.heights[i])/(nNext-n)+
			(nNext-n-d)*(e.heights[i]-e.heights[i-1])/(n-nPrev))
}

func (e *quantileEstimator) linear(i, step int) float64 {
	j := i + step
	return e.heights[i] + float64(step)*(e.heights[j]-e.heights[i])/float64(e.positions[j]-e.positions[i])
}

// value returns the current estimate, or 0 with no observations.
func (e *quantileEstimator) value() float64 {
	switch {
	case e.count == 0:
		return 0
	case e.count < len(e.warmup):
		sorted := e.warmup
		slices.Sort(sorted[:e.count])
		return sorted[int(float64(e.count-1)*e.p)]
	default:
		return e.heights[2]
	}
}

// quantileSet tracks several quantiles of the same stream, plus the mean and
// maximum.
//
// Thread Safety: NOT thread-safe. Caller must ensure synchronization.
type quantileSet struct {
	estimators []*quantileEstimator
	sum        float64
	max        float64
	count      int
}

func newQuantileSet(quantiles ...float64) *quantileSet {
	s := &quantileSet{
		estimators: make([]*quantileEstimator, len(quantiles)),
		max:        -math.MaxFloat64,
	}
	for i, p := range quantiles {
		s.estimators[i] = newQuantileEstimator(p)
	}
	return s
}

func (s *quantileSet) observe(x float64) {
	s.count++
	s.sum += x
	if x > s.max {
		s.max = x
	}
	for _, e := range s.estimators {
		e.observe(x)
	}
}

// quantile returns the estimate for the i-th configured quantile.
func (s *quantileSet) quantile(i int) float64 {
	if i < 0 || i >= len(s.estimators) {
		return 0
	}
	return s.estimators[i].value()
}

func (s *quantileSet) maximum() float64 {
	if s.count == 0 {
		return 0
	}
	return s.max
}

func (s *quantileSet) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}
