package dataset

import (
	"math/rand/v2"
	"runtime"

	"github.com/histobench/pkg/parallel"
)

// GenerateOptions configures Generate.
type GenerateOptions struct {
	Size  int
	Range int
	// Seed seeds the per-worker generators. Equal seeds and worker counts
	// yield equal datasets.
	Seed uint64
	// Workers is the number of filling goroutines; 0 means GOMAXPROCS.
	Workers int
}

// Generate fills a dataset with values uniformly distributed over [0, Range).
// The index range is split into one contiguous block per worker and every
// worker draws from its own PCG stream seeded with (Seed, worker).
func Generate(opts GenerateOptions) (*Dataset, error) {
	if err := checkShape(opts.Size, opts.Range); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if opts.Size > 0 && workers > opts.Size {
		workers = opts.Size
	}

	values := make([]int32, opts.Size)
	sched, err := parallel.NewSchedule(opts.Size, parallel.Options{
		Workers: workers,
		Policy:  parallel.PolicyStatic,
	})
	if err != nil {
		return nil, err
	}

	rng := uint64(opts.Range)
	err = parallel.Run(workers, func(w int) error {
		r := rand.New(rand.NewPCG(opts.Seed, uint64(w)))
		c := sched.Claimer(w)
		for p, ok := c.Next(); ok; p, ok = c.Next() {
			block := values[p.Start:p.End]
			for i := range block {
				block[i] = int32(r.Uint64N(rng))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset{values: values, rng: opts.Range}, nil
}
