package opt

import (
	"context"
	"sync"

	"clrpd/internal/clrp"
)

// Portfolio runs one annealer per seed in parallel and keeps the cheapest
// result. Ties break on the lower seed index so the outcome is deterministic
// regardless of goroutine scheduling.
type Portfolio struct {
	Cfg   Config
	Seeds []int64
	Sink  ProgressSink
}

func (p *Portfolio) Name() string { return "sa_portfolio" }

func (p *Portfolio) Solve(ctx context.Context, inst *clrp.Instance) (Result, error) {
	initial, err := Construct(inst)
	if err != nil {
		return Result{}, err
	}
	seeds := p.Seeds
	if len(seeds) == 0 {
		seeds = []int64{1}
	}

	results := make([]Result, len(seeds))
	errs := make([]error, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(i int, seed int64) {
			defer wg.Done()
			a := &Annealer{Cfg: p.Cfg, Seed: seed, Sink: p.Sink}
			results[i], errs[i] = a.Refine(ctx, initial.Clone())
		}(i, seed)
	}
	wg.Wait()

	bestIdx := -1
	for i := range results {
		if errs[i] != nil {
			continue
		}
		if bestIdx == -1 || results[i].Cost < results[bestIdx].Cost-eps {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return Result{}, errs[0]
	}
	return results[bestIdx], nil
}
