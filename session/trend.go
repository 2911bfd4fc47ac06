package session

// Trend directions reported by computeTrend.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// trendSampleLimit bounds the trend computation to the most recent samples.
const trendSampleLimit = 10

// Trend is a recency-weighted directionality signal over a rolling window.
type Trend struct {
	// Direction is one of TrendIncreasing, TrendDecreasing, TrendStable.
	Direction string

	// Change is the second-half mean minus the first-half mean.
	Change float64
}

// computeTrend compares the means of the first and second halves of the most
// recent (up to ten) samples. The split is an integer floor: with n samples
// the first half holds n/2 and the second half the rest, so odd counts weight
// the recent side.
//
// Returns nil when fewer than two samples exist: a single point has no
// direction.
func computeTrend(samples []Sample) *Trend {
	if len(samples) < 2 {
		return nil
	}
	if len(samples) > trendSampleLimit {
		samples = samples[len(samples)-trendSampleLimit:]
	}

	split := len(samples) / 2
	firstMean := mean(samples[:split])
	secondMean := mean(samples[split:])

	trend := &Trend{Change: secondMean - firstMean}
	switch {
	case secondMean > firstMean:
		trend.Direction = TrendIncreasing
	case secondMean < firstMean:
		trend.Direction = TrendDecreasing
	default:
		trend.Direction = TrendStable
	}
	return trend
}

func mean(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}
