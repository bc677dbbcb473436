package experiment

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/chsim/internal/config"
)

// RunEnsemble runs the same parameters once per seed, at most parallel
// runs at a time (0 means GOMAXPROCS). With a store each member gets its
// own directory named <output>_seed<seed>. Outcomes are in seed order.
func RunEnsemble(ctx context.Context, p config.Params, seeds []int64, parallel int, opts ...Option) ([]*Outcome, error) {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	base := p.Output
	if base == "" {
		base = "ensemble"
	}

	outcomes := make([]*Outcome, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, seed := range seeds {
		member := p
		member.Seed = seed
		member.Output = fmt.Sprintf("%s_seed%d", base, seed)
		g.Go(func() error {
			out, err := New(member, opts...).Run(ctx)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
