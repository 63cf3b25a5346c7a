package parallel

// Reduce runs a map-reduce over schedule s.
//
// Every worker starts from init(w), folds each claimed partition into its
// private accumulator with body and never touches another worker's value.
// After the join the partials are combined pairwise in a binary tree:
// round r merges partial i+2^r into partial i for every i that is a
// multiple of 2^(r+1). Pairs within a round are combined concurrently.
// combine(dst, src) must return the merged value; src is not used again.
//
// The combined result of all workers is returned. Partials are only
// combined after every worker has finished, so body never races with combine.
func Reduce[T any](s Schedule, init func(worker int) T, body func(acc T, p Partition) T, combine func(dst, src T) T) (T, error) {
	var zero T
	workers := s.Workers()
	partials := make([]T, workers)

	err := Run(workers, func(w int) error {
		acc := init(w)
		c := s.Claimer(w)
		for p, ok := c.Next(); ok; p, ok = c.Next() {
			acc = body(acc, p)
		}
		partials[w] = acc
		return nil
	})
	if err != nil {
		return zero, err
	}

	if err := TreeCombine(partials, combine); err != nil {
		return zero, err
	}
	return partials[0], nil
}

// TreeCombine folds values into values[0] with a pairwise tree of
// log2(len(values)) rounds. values must be non-empty.
func TreeCombine[T any](values []T, combine func(dst, src T) T) error {
	n := len(values)
	for stride := 1; stride < n; stride *= 2 {
		width := 2 * stride
		pairs := (n + width - 1) / width
		err := Run(pairs, func(i int) error {
			dst := i * width
			src := dst + stride
			if src < n {
				values[dst] = combine(values[dst], values[src])
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
