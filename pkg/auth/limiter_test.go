package auth

import "testing"

func TestLimiterBucketsPerKey(t *testing.T) {
	p := &limiterPool{cfg: SecConfig{RPS: 0.001, Burst: 2}}

	if !p.Allow("k1") || !p.Allow("k1") {
		t.Fatalf("burst of 2 must admit two requests")
	}
	if p.Allow("k1") {
		t.Fatalf("third request should exceed the burst")
	}

	// a different caller gets its own bucket
	if !p.Allow("k2") {
		t.Fatalf("fresh key must not inherit another key's bucket")
	}
}

func TestLimiterDefaultsWhenUnconfigured(t *testing.T) {
	p := &limiterPool{cfg: SecConfig{}}
	for i := 0; i < defaultBurst; i++ {
		if !p.Allow("k") {
			t.Fatalf("default burst exhausted after %d requests", i)
		}
	}
}
