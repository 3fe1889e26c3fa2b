package classifier

import (
	"math"
	"sort"
)

// FeatureCount is the length of the statistical feature vector.
const FeatureCount = 14

const (
	denoiseThreshold   = 0.05
	medianFilterKernel = 35
)

// histogram counts byte values over the chunk. The distribution of byte
// frequencies is the signal the statistical strategy classifies.
func histogram(payload []byte) []float64 {
	counts := make([]float64, 256)
	for _, b := range payload {
		counts[b]++
	}
	// keep only byte values that occur, mirroring a value_counts over the data
	hist := make([]float64, 0, 256)
	for _, c := range counts {
		if c > 0 {
			hist = append(hist, c)
		}
	}
	return hist
}

// denoise drops samples below a relative amplitude threshold of the peak.
func denoise(y []float64) []float64 {
	maxAbs := 0.0
	for _, v := range y {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	cleaned := make([]float64, 0, len(y))
	for _, v := range y {
		if math.Abs(v) > denoiseThreshold*maxAbs {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}

// medianFilter applies a fixed-window median smoothing with zero-padded
// edges, matching scipy.signal.medfilt semantics.
func medianFilter(y []float64, kernel int) []float64 {
	if kernel < 1 || len(y) == 0 {
		return y
	}
	half := kernel / 2
	out := make([]float64, len(y))
	window := make([]float64, 0, kernel)
	for i := range y {
		window = window[:0]
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < len(y) {
				window = append(window, y[j])
			} else {
				window = append(window, 0)
			}
		}
		sort.Float64s(window)
		out[i] = window[len(window)/2]
	}
	return out
}

func mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func power(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range y {
		sum += v * v
	}
	return sum / float64(len(y))
}

func rms(y []float64) float64 {
	return math.Sqrt(power(y))
}

func peak(y []float64) float64 {
	p := 0.0
	for _, v := range y {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}

func variance(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	m := mean(y)
	sum := 0.0
	for _, v := range y {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(y))
}

// ratio returns a/b with the 0/0 -> 0 convention so constant or silent
// inputs never propagate NaN into the feature vector.
func ratio(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return a / b
}

// skewness is the Fisher-Pearson standardized third moment; 0 for
// zero-variance input.
func skewness(y []float64) float64 {
	std := math.Sqrt(variance(y))
	if std == 0 || len(y) == 0 {
		return 0
	}
	m := mean(y)
	sum := 0.0
	for _, v := range y {
		d := (v - m) / std
		sum += d * d * d
	}
	return sum / float64(len(y))
}

// kurtosis is the excess kurtosis (normal distribution -> 0); 0 for
// zero-variance input.
func kurtosis(y []float64) float64 {
	v := variance(y)
	if v == 0 || len(y) == 0 {
		return 0
	}
	m := mean(y)
	sum := 0.0
	for _, val := range y {
		d := val - m
		sum += d * d * d * d
	}
	return sum/(float64(len(y))*v*v) - 3
}

// Features computes the fixed statistical feature vector over a byte chunk.
// Preprocessing toggles are applied before any statistic is computed, median
// smoothing first, then denoising.
func Features(payload []byte, doDenoise, doMedianFilter bool) []float64 {
	y := histogram(payload)

	if doMedianFilter {
		y = medianFilter(y, medianFilterKernel)
	}
	if doDenoise {
		y = denoise(y)
	}

	minV, maxV := 0.0, 0.0
	if len(y) > 0 {
		minV, maxV = y[0], y[0]
		for _, v := range y {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}

	m := mean(y)
	r := rms(y)
	p := peak(y)
	v := variance(y)
	std := math.Sqrt(v)
	p2p := maxV - minV
	crest := ratio(p, r)
	form := ratio(r, m)
	pulse := ratio(p, m)

	return []float64{minV, maxV, m, r, v, std, power(y), p, p2p, crest, skewness(y), kurtosis(y), form, pulse}
}
