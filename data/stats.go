package data

import (
	"math"

	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// MaxHistogramBins bounds the Nouméa price histogram.
const MaxHistogramBins = 50

// ComputeStats counts the medications per reimbursement rate and bins their
// Nouméa prices. Unpriced medications are left out of the histogram.
func ComputeStats(medications []entities.Medication) interfaces.DatasetStats {
	stats := interfaces.DatasetStats{
		Total:          len(medications),
		ByRate:         make(map[string]int),
		PriceHistogram: make([]interfaces.HistogramBin, 0),
	}

	prices := make([]float64, 0, len(medications))
	for _, m := range medications {
		stats.ByRate[m.ReimbursementRate]++
		if m.PriceNoumea != nil {
			prices = append(prices, *m.PriceNoumea)
		}
	}

	stats.PriceHistogram = Histogram(prices, MaxHistogramBins)
	return stats
}

// Histogram bins values into at most maxBins bins of a round width (1, 2, 2.5
// or 5 times a power of ten) starting at a multiple of that width.
func Histogram(values []float64, maxBins int) []interfaces.HistogramBin {
	if len(values) == 0 || maxBins < 1 {
		return []interfaces.HistogramBin{}
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		return []interfaces.HistogramBin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	step := niceStep((hi - lo) / float64(maxBins))
	start := math.Floor(lo/step) * step
	n := binCount(start, hi, step)
	for n > maxBins {
		step = niceStep(step * 1.01)
		start = math.Floor(lo/step) * step
		n = binCount(start, hi, step)
	}

	bins := make([]interfaces.HistogramBin, n)
	for i := range bins {
		bins[i].Lower = start + float64(i)*step
		bins[i].Upper = start + float64(i+1)*step
	}
	for _, v := range values {
		i := int((v - start) / step)
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

func binCount(start, hi, step float64) int {
	n := int(math.Floor((hi-start)/step)) + 1
	if start+float64(n-1)*step == hi && n > 1 {
		n--
	}
	return n
}

// niceStep returns the smallest round width not below raw.
func niceStep(raw float64) float64 {
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if step := m * base; step >= raw {
			return step
		}
	}
	return 10 * base
}
