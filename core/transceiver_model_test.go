package core

import "testing"

func TestTransceiverCompatibility(t *testing.T) {
	a := &TransceiverModel{
		ID:   "a",
		Band: FrequencyBand{MinGHz: 10, MaxGHz: 15},
	}
	b := &TransceiverModel{
		ID:   "b",
		Band: FrequencyBand{MinGHz: 14, MaxGHz: 18},
	}
	c := &TransceiverModel{
		ID:   "c",
		Band: FrequencyBand{MinGHz: 16, MaxGHz: 20},
	}

	if !a.IsCompatible(b) {
		t.Error("a and b should be compatible")
	}
	if a.IsCompatible(c) {
		t.Error("a and c should not be compatible")
	}
}

func TestLinkBudgetRateNonIncreasingInRange(t *testing.T) {
	lb := NewLinkBudget(DefaultTransceiver())
	prev := lb.RateBps(1, 90)
	for _, rng := range []float64{10, 100, 500, 1000, 2000, 5000, 10000, 40000, 1e6, 1e8} {
		rate := lb.RateBps(rng, 90)
		if rate > prev {
			t.Fatalf("rate grew with range at %v km: %v > %v", rng, rate, prev)
		}
		if rate < 0 {
			t.Fatalf("negative rate at %v km", rng)
		}
		prev = rate
	}
	if lb.RateBps(1e8, 90) != 0 {
		t.Fatalf("rate beyond the SNR threshold should be zero")
	}
}

func TestLinkBudgetCapsAndElevation(t *testing.T) {
	wide := DefaultTransceiver()
	wide.BandwidthMHz = 100
	if got := NewLinkBudget(wide).RateBps(1, 90); got != 1e9 {
		t.Fatalf("short range rate = %v, want the 1 Gbit/s cap", got)
	}

	lb := NewLinkBudget(DefaultTransceiver())
	if lb.SNRdB(1500, 10) >= lb.SNRdB(1500, 90) {
		t.Fatalf("low elevation should cost atmospheric loss")
	}

	noisy := DefaultTransceiver()
	nf := 10.0
	noisy.SystemNoiseFigureDB = &nf
	if NewLinkBudget(noisy).SNRdB(1500, 90) >= lb.SNRdB(1500, 90) {
		t.Fatalf("a higher noise figure should lower SNR")
	}
}

func TestConstantRate(t *testing.T) {
	var m RateModel = ConstantRate(5e5)
	if m.RateBps(100, 5) != 5e5 || m.RateBps(1e6, 90) != 5e5 {
		t.Fatalf("ConstantRate should ignore geometry")
	}
}
