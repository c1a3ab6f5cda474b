package channel

import "time"

// RTTEstimator computes an exponentially-weighted moving average RTT from
// acknowledged transport sequences (§4.2).
type RTTEstimator struct {
	alpha     float64
	estimate  time.Duration
	hasSample bool
}

// NewRTTEstimator creates an estimator with the conventional EWMA weight.
func NewRTTEstimator() *RTTEstimator {
	return &RTTEstimator{alpha: 0.125}
}

// Sample folds one round-trip measurement into the running estimate.
func (r *RTTEstimator) Sample(rtt time.Duration) {
	if !r.hasSample {
		r.estimate = rtt
		r.hasSample = true
		return
	}
	r.estimate = time.Duration(float64(r.estimate)*(1-r.alpha) + float64(rtt)*r.alpha)
}

// Estimate returns the current RTT estimate, defaulting to 100ms before
// any sample has been observed.
func (r *RTTEstimator) Estimate() time.Duration {
	if !r.hasSample {
		return 100 * time.Millisecond
	}
	return r.estimate
}

// RTO returns the current retransmission timeout: max(MinRTO, 2*RTT),
// capped at MaxRTO (§4.2, §5).
func (r *RTTEstimator) RTO() time.Duration {
	rto := 2 * r.Estimate()
	if rto < MinRTO {
		return MinRTO
	}
	if rto > MaxRTO {
		return MaxRTO
	}
	return rto
}
