// internal/agent/sampler/provider.go
package sampler

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// ScriptedProvider replays a fixed sequence of fixes (or errors). This is
// the contract fake for the platform boundary used across agent tests.
type ScriptedProvider struct {
	mu    sync.Mutex
	fixes []Fix
	errs  []error
	idx   int
}

func NewScriptedProvider(fixes ...Fix) *ScriptedProvider {
	return &ScriptedProvider{fixes: fixes}
}

// Fail makes the next calls return err before any remaining fixes.
func (p *ScriptedProvider) Fail(errs ...error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
	return p
}

func (p *ScriptedProvider) CurrentFix(ctx context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return Fix{}, err
	}
	if len(p.fixes) == 0 {
		return Fix{}, ErrServicesDisabled
	}
	fix := p.fixes[p.idx%len(p.fixes)]
	p.idx++
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}
	return fix, nil
}

// SimulatedProvider produces a random walk from a start point. Used by the
// agent binary when no real device bridge is attached.
type SimulatedProvider struct {
	mu      sync.Mutex
	lat     float64
	lng     float64
	battery int
	rng     *rand.Rand
}

func NewSimulatedProvider(startLat, startLng float64) *SimulatedProvider {
	return &SimulatedProvider{
		lat:     startLat,
		lng:     startLng,
		battery: 100,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *SimulatedProvider) CurrentFix(ctx context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// ~50-100m steps.
	p.lat += (p.rng.Float64() - 0.5) * 0.002
	p.lng += (p.rng.Float64() - 0.5) * 0.002
	if p.battery > 1 && p.rng.Intn(10) == 0 {
		p.battery--
	}

	return Fix{
		Latitude:     p.lat,
		Longitude:    p.lng,
		Accuracy:     5 + p.rng.Float64()*15,
		BatteryLevel: p.battery,
		Timestamp:    time.Now(),
	}, nil
}
