package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// fallback bucket parameters when the config leaves rate limiting unset
const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller: the API key when
// present, the client ip otherwise. Buckets are created lazily and kept
// for the process lifetime.
type limiterPool struct {
	mu    sync.Mutex
	byKey map[string]*rate.Limiter
	cfg   SecConfig
}

// Allow consumes one token from the caller's bucket, creating the
// bucket on first use.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.byKey[key]
	if !ok {
		rps := p.cfg.RPS
		if rps <= 0 {
			rps = defaultRPS
		}
		burst := p.cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		if p.byKey == nil {
			p.byKey = make(map[string]*rate.Limiter)
		}
		p.byKey[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
