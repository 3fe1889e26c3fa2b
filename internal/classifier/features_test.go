package classifier

import (
	"bytes"
	"math"
	"testing"
)

func TestFeaturesLength(t *testing.T) {
	payload := []byte{0, 1, 1, 2, 2, 2, 3, 3, 3, 3}

	got := Features(payload, false, false)
	if len(got) != FeatureCount {
		t.Fatalf("expected %d features, got %d", FeatureCount, len(got))
	}
	for i, v := range got {
		if math.IsNaN(v) {
			t.Errorf("feature %d is NaN", i)
		}
	}
}

func TestFeaturesDeterministic(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	a := Features(payload, true, true)
	b := Features(payload, true, true)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("feature %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFeaturesEmptyPayload(t *testing.T) {
	got := Features(nil, false, false)
	if len(got) != FeatureCount {
		t.Fatalf("expected %d features, got %d", FeatureCount, len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("feature %d on empty payload = %v, want 0", i, v)
		}
	}
}

func TestFeaturesConstantInput(t *testing.T) {
	// a single repeated byte value collapses the histogram to one bin
	payload := bytes.Repeat([]byte{42}, 1000)

	f := Features(payload, false, false)
	minV, maxV, m, r := f[0], f[1], f[2], f[3]
	v, std := f[4], f[5]
	crest, form, pulse := f[9], f[12], f[13]

	if minV != 1000 || maxV != 1000 || m != 1000 || r != 1000 {
		t.Errorf("location stats = %v/%v/%v/%v, want 1000", minV, maxV, m, r)
	}
	if v != 0 || std != 0 {
		t.Errorf("variance/std = %v/%v, want 0", v, std)
	}
	if crest != 1 || form != 1 || pulse != 1 {
		t.Errorf("crest/form/pulse = %v/%v/%v, want 1", crest, form, pulse)
	}
	if f[10] != 0 || f[11] != 0 {
		t.Errorf("skew/kurtosis = %v/%v, want 0", f[10], f[11])
	}
}

func TestHistogramCountsOccurringValues(t *testing.T) {
	// three distinct byte values with counts 1, 2, 3
	payload := []byte{5, 9, 9, 200, 200, 200}

	hist := histogram(payload)
	if len(hist) != 3 {
		t.Fatalf("expected 3 histogram entries, got %d", len(hist))
	}
	sum := 0.0
	for _, c := range hist {
		sum += c
	}
	if sum != float64(len(payload)) {
		t.Errorf("histogram total %v, want %d", sum, len(payload))
	}
}

func TestDenoiseDropsSmallSamples(t *testing.T) {
	// peak is 100; values at or below 5% of it are dropped
	y := []float64{100, 4, 6, 5, 50}

	got := denoise(y)
	want := []float64{100, 6, 50}
	if len(got) != len(want) {
		t.Fatalf("denoise returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("denoise returned %v, want %v", got, want)
		}
	}
}

func TestMedianFilterConstantInput(t *testing.T) {
	y := make([]float64, 100)
	for i := range y {
		y[i] = 7
	}

	got := medianFilter(y, 5)
	// interior stays constant; zero padding pulls the edges down
	if got[50] != 7 {
		t.Errorf("interior value = %v, want 7", got[50])
	}
	if got[0] != 7 {
		// window at index 0 is [0 0 7 7 7], median 7
		t.Errorf("edge value = %v, want 7", got[0])
	}
}

func TestMedianFilterSmoothsSpike(t *testing.T) {
	y := []float64{1, 1, 1, 100, 1, 1, 1}

	got := medianFilter(y, 3)
	if got[3] != 1 {
		t.Errorf("spike survived median filter: %v", got[3])
	}
}

func TestRatioConventions(t *testing.T) {
	if got := ratio(0, 0); got != 0 {
		t.Errorf("ratio(0,0) = %v, want 0", got)
	}
	if got := ratio(2, 0); !math.IsInf(got, 1) {
		t.Errorf("ratio(2,0) = %v, want +Inf", got)
	}
	if got := ratio(6, 3); got != 2 {
		t.Errorf("ratio(6,3) = %v, want 2", got)
	}
}

func TestSkewnessAndKurtosisZeroVariance(t *testing.T) {
	y := []float64{4, 4, 4, 4}
	if got := skewness(y); got != 0 {
		t.Errorf("skewness of constant input = %v, want 0", got)
	}
	if got := kurtosis(y); got != 0 {
		t.Errorf("kurtosis of constant input = %v, want 0", got)
	}
}
