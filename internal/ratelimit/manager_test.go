package ratelimit

import (
	"sync"
	"testing"
)

func TestGetLimiterCreatesOnce(t *testing.T) {
	t.Parallel()
	m := NewManager()

	a := m.GetLimiter("exchange", 10, 20)
	b := m.GetLimiter("exchange", 99, 999) // args ignored on repeat call

	if a != b {
		t.Error("GetLimiter returned a different bucket for the same name")
	}
	if got := b.Capacity(); got != 20 {
		t.Errorf("Capacity() = %d, want 20 (first registration wins)", got)
	}
}

func TestGetLimiterSeparateNames(t *testing.T) {
	t.Parallel()
	m := NewManager()

	a := m.GetLimiter("exchange", 10, 20)
	b := m.GetLimiter("weather", 1, 5)

	if a == b {
		t.Error("distinct names share a bucket")
	}
}

func TestGetLimiterConcurrentFirstRegistration(t *testing.T) {
	t.Parallel()
	m := NewManager()

	const n = 50
	results := make([]*TokenBucket, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetLimiter("exchange", 10, 20)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent GetLimiter created more than one bucket (index %d)", i)
		}
	}
}

func TestAllMetricsAggregates(t *testing.T) {
	t.Parallel()
	m := NewManager()

	ex := m.GetLimiter("exchange", 0.001, 1)
	_ = m.GetLimiter("weather", 1, 5)

	_, _ = ex.TryAcquire(1) // success
	_, _ = ex.TryAcquire(1) // rejection

	all := m.AllMetrics()
	if len(all) != 2 {
		t.Fatalf("AllMetrics() has %d entries, want 2", len(all))
	}
	if got := all["exchange"].TotalRequests; got != 2 {
		t.Errorf("exchange TotalRequests = %d, want 2", got)
	}
	if got := all["exchange"].RejectedRequests; got != 1 {
		t.Errorf("exchange RejectedRequests = %d, want 1", got)
	}
	if got := all["weather"].TotalRequests; got != 0 {
		t.Errorf("weather TotalRequests = %d, want 0", got)
	}

	m.ResetAllMetrics()
	for name, metrics := range m.AllMetrics() {
		if metrics != (Metrics{}) {
			t.Errorf("%s metrics after reset = %+v, want zero", name, metrics)
		}
	}
}
