package analysis

import (
	"math"
	"testing"
	"time"
)

func TestPerclosWindow_NeedsTwoSamples(t *testing.T) {
	w := NewPerclosWindow(time.Second, 0.2)

	w.Add(0, 0.1)
	if w.Value() != 0 {
		t.Errorf("Expected 0 with a single sample, got %.2f", w.Value())
	}

	w.Add(100, 0.3)
	if math.Abs(w.Value()-0.5) > 1e-9 {
		t.Errorf("Expected PERCLOS 0.5, got %.2f", w.Value())
	}
	if w.State() != DriverMicrosleep {
		t.Errorf("Expected microsleep, got %s", w.State())
	}
}

func TestPerclosWindow_Eviction(t *testing.T) {
	w := NewPerclosWindow(time.Second, 0.2)

	w.Add(0, 0.1)
	w.Add(100, 0.1)
	w.Add(1200, 0.3) // pushes out both closed samples

	if w.Count() != 1 {
		t.Errorf("Expected 1 sample in window, got %d", w.Count())
	}

	w.Add(1300, 0.3)
	if w.Value() != 0 {
		t.Errorf("Expected PERCLOS 0 after eviction, got %.2f", w.Value())
	}
	if w.State() != DriverAttentive {
		t.Errorf("Expected attentive, got %s", w.State())
	}
}

func TestPerclosWindow_LongRun(t *testing.T) {
	w := NewPerclosWindow(time.Second, 0.2)

	for i := 0; i < 1000; i++ {
		ear := 0.3
		if i%2 == 0 {
			ear = 0.1
		}
		w.Add(int64(i*10), ear)
	}

	// Window keeps timestamps 8990..9990
	if w.Count() != 101 {
		t.Errorf("Expected 101 samples in window, got %d", w.Count())
	}
	if math.Abs(w.Value()-50.0/101.0) > 1e-9 {
		t.Errorf("Expected PERCLOS %.4f, got %.4f", 50.0/101.0, w.Value())
	}
	if len(w.samples) > 2*compactThreshold+101 {
		t.Errorf("Buffer was not compacted: %d entries", len(w.samples))
	}
}

func TestPerclosWindow_Reset(t *testing.T) {
	w := NewPerclosWindow(time.Second, 0.2)
	w.Add(0, 0.1)
	w.Add(10, 0.1)

	w.Reset()

	if w.Count() != 0 || w.Value() != 0 {
		t.Errorf("Expected empty window after reset, got count %d value %.2f", w.Count(), w.Value())
	}
}

func TestClassifyPerclos(t *testing.T) {
	cases := []struct {
		perclos float64
		want    DriverState
	}{
		{0, DriverAttentive},
		{0.149, DriverAttentive},
		{0.15, DriverDrowsy},
		{0.39, DriverDrowsy},
		{0.40, DriverMicrosleep},
		{1, DriverMicrosleep},
	}

	for _, c := range cases {
		if got := ClassifyPerclos(c.perclos); got != c.want {
			t.Errorf("ClassifyPerclos(%.3f) = %s, want %s", c.perclos, got, c.want)
		}
	}
}

func BenchmarkPerclosWindowAdd(b *testing.B) {
	w := NewPerclosWindow(DefaultPerclosWindow, DefaultEarClosedThreshold)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Add(int64(i*33), float64(i%30)/100)
	}
}
